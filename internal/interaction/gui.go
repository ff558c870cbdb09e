package interaction

import "context"

// GUIBackend is a placeholder seam for a graphical front-end. THE CORE
// depends only on the Backend interface; wiring an actual GUI transport
// (e.g. over a websocket to the preview server) happens outside this
// package and is not part of THE CORE's scope.
type GUIBackend struct{}

// NewGUIBackend returns a GUIBackend. Every method returns ErrNotImplemented
// until a real transport is attached.
func NewGUIBackend() *GUIBackend { return &GUIBackend{} }

func (g *GUIBackend) ShowMessage(context.Context, Level, string) error {
	return ErrNotImplemented
}

func (g *GUIBackend) ShowMessageWithContext(context.Context, Level, string, MessageContext) error {
	return ErrNotImplemented
}

func (g *GUIBackend) RequestInput(context.Context, string, []Option, string) (Answer, error) {
	return Answer{}, ErrNotImplemented
}

func (g *GUIBackend) SendStreaming(context.Context, string, string, bool) error {
	return ErrNotImplemented
}

func (g *GUIBackend) RequestConfirmationWithFeedback(context.Context, string, string) (Confirmation, error) {
	return Confirmation{}, ErrNotImplemented
}

func (g *GUIBackend) Cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}

package model

import "time"

// EnvelopeMeta is the meta block of an Artifact Envelope (spec.md §3).
type EnvelopeMeta struct {
	SessionID  string    `json:"session_id"`
	ArtifactID string    `json:"artifact_id"`
	Stage      Stage     `json:"stage"`
	Version    int       `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
}

// EnvelopeLinks records the artifacts this one was derived from.
type EnvelopeLinks struct {
	Prev []string `json:"prev"`
}

// Envelope wraps every stage output (spec.md §3). Data is left as
// json.RawMessage-compatible `any` so the store can serialize any of the
// eight payload kinds without a type switch at the persistence layer;
// stage code unmarshals Data into the concrete payload it expects.
type Envelope struct {
	Meta    EnvelopeMeta  `json:"meta"`
	Summary []string      `json:"summary"`
	Links   EnvelopeLinks `json:"links"`
	Data    any           `json:"data"`
}

// ArtifactMeta is the lightweight projection returned by Store.List.
type ArtifactMeta struct {
	ArtifactID string    `json:"artifact_id"`
	Stage      Stage     `json:"stage"`
	Version    int       `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
}

// Package runtime implements the tech-stack/runtime-shape detection that
// feeds the project runner and static server: given a workspace directory,
// decide whether it's a vanilla HTML site, a frontend dev server, a backend
// service, or a frontend+backend pair, plus the command/port each needs
// (SPEC_FULL.md §4.7.1). Ported from the heuristic fallback path of
// runtime_analyzer.rs (the LLM-assisted path is out of scope here; stages
// that want deeper analysis call internal/llm directly).
package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type is the detected runtime shape of a project.
type Type string

const (
	TypeVanillaHTML Type = "vanilla_html"
	TypeReactVite   Type = "react_vite"
	TypeVueVite     Type = "vue_vite"
	TypeNodeExpress Type = "node_express"
	TypeNodeNest    Type = "node_nest"
	TypeNodeTool    Type = "node_tool"
	TypeRustBackend Type = "rust_backend"
	TypeRustCLI     Type = "rust_cli"
	TypeGoBackend   Type = "go_backend"
	TypePythonAPI   Type = "python_api"
	TypeFullstack   Type = "fullstack"
	TypeCompose     Type = "compose_backend"
	TypeUnknown     Type = "unknown"
)

// Frontend describes a frontend dev server's launch shape.
type Frontend struct {
	DevCommand string
	DevPort    int
	DevHost    string
}

// Backend describes a backend service's launch shape.
type Backend struct {
	StartCommand string
	Port         int
	Host         string
}

// Fullstack describes a frontend+backend pair started together.
type Fullstack struct {
	FrontendDevCommand string
	BackendDevCommand  string
	FrontendPort       int
	BackendPort        int
}

// Config is the detected runtime shape for a project directory.
type Config struct {
	Type      Type
	Frontend  *Frontend
	Backend   *Backend
	Fullstack *Fullstack
}

// Detect inspects dir's top-level files (docker-compose.yml, package.json,
// go.mod, Cargo.toml, index.html, main.py) and returns the best-guess
// runtime Config. A docker-compose manifest, when present, is the most
// authoritative signal available (it names real launch commands and ports
// instead of guessing them) and so is checked first; everything else falls
// back to the original heuristic precedence, where fullstack (both a JS and
// a backend manifest present) takes priority over either alone.
func Detect(dir string) Config {
	if cfg, ok := detectCompose(dir); ok {
		return cfg
	}

	hasPackageJSON, pkg := readPackageJSON(dir)
	hasCargoToml, cargoToml := fileContains(dir, "Cargo.toml")
	hasGoMod := exists(filepath.Join(dir, "go.mod"))
	hasIndexHTML := exists(filepath.Join(dir, "index.html"))

	backendPresent := hasCargoToml || hasGoMod || hasPythonEntrypoint(dir)

	switch {
	case hasPackageJSON && backendPresent:
		return Config{
			Type: TypeFullstack,
			Fullstack: &Fullstack{
				FrontendDevCommand: frontendDevCommand(pkg),
				BackendDevCommand:  backendDevCommand(hasCargoToml, hasGoMod),
				FrontendPort:       5173,
				BackendPort:        3000,
			},
		}
	case hasPackageJSON:
		return detectNode(pkg)
	case hasCargoToml:
		return detectRust(cargoToml)
	case hasGoMod:
		return Config{Type: TypeGoBackend, Backend: &Backend{StartCommand: "go run .", Port: 8080, Host: "localhost"}}
	case hasIndexHTML:
		return Config{Type: TypeVanillaHTML}
	case hasPythonEntrypoint(dir):
		return Config{Type: TypePythonAPI, Backend: &Backend{StartCommand: "python main.py", Port: 8000, Host: "localhost"}}
	default:
		return Config{Type: TypeUnknown}
	}
}

// composeFile is the slice of docker-compose.yml this package understands:
// just enough to recover each service's published port and start command.
type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Ports   []string `yaml:"ports"`
	Command any      `yaml:"command"`
}

// detectCompose looks for docker-compose.yml/.yaml at dir's root and, when
// found, builds a Config directly from its services instead of guessing
// from source-tree heuristics: one service maps to a Backend, two or more
// to a Fullstack pairing the first two services found (by map key order,
// for determinism).
func detectCompose(dir string) (Config, bool) {
	var raw []byte
	for _, name := range []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			raw = data
			break
		}
	}
	if raw == nil {
		return Config{}, false
	}

	var compose composeFile
	if err := yaml.Unmarshal(raw, &compose); err != nil || len(compose.Services) == 0 {
		return Config{}, false
	}

	names := make([]string, 0, len(compose.Services))
	for name := range compose.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	first := compose.Services[names[0]]
	if len(names) == 1 {
		return Config{Type: TypeCompose, Backend: &Backend{
			StartCommand: composeCommand(first, "docker compose up "+names[0]),
			Port:         composePort(first, 8080),
			Host:         "localhost",
		}}, true
	}

	second := compose.Services[names[1]]
	return Config{
		Type: TypeFullstack,
		Fullstack: &Fullstack{
			FrontendDevCommand: composeCommand(first, "docker compose up "+names[0]),
			BackendDevCommand:  composeCommand(second, "docker compose up "+names[1]),
			FrontendPort:       composePort(first, 5173),
			BackendPort:        composePort(second, 3000),
		},
	}, true
}

// composeCommand renders a service's `command:` entry (a bare string or a
// list of argv words) back into a single shell command, falling back to
// def when the service declares none (the image's own entrypoint runs).
func composeCommand(svc composeService, def string) string {
	switch v := svc.Command.(type) {
	case string:
		if v != "" {
			return v
		}
	case []any:
		if len(v) == 0 {
			break
		}
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, fmt.Sprintf("%v", p))
		}
		return strings.Join(parts, " ")
	}
	return def
}

// composePort extracts the host-side port from the first "host:container"
// (or bare "port") entry in a service's `ports:` list.
func composePort(svc composeService, def int) int {
	if len(svc.Ports) == 0 {
		return def
	}
	spec := svc.Ports[0]
	host := spec
	if idx := strings.IndexByte(spec, ':'); idx >= 0 {
		host = spec[:idx]
	}
	host = strings.TrimSpace(strings.Trim(host, `"'`))
	if port, err := strconv.Atoi(host); err == nil {
		return port
	}
	return def
}

func detectNode(pkg map[string]any) Config {
	deps := mergedDeps(pkg)
	switch {
	case hasDep(deps, "react"):
		return Config{Type: TypeReactVite, Frontend: &Frontend{DevCommand: "npm run dev", DevPort: 5173, DevHost: "localhost"}}
	case hasDep(deps, "vue"):
		return Config{Type: TypeVueVite, Frontend: &Frontend{DevCommand: "npm run dev", DevPort: 5173, DevHost: "localhost"}}
	case hasDep(deps, "@nestjs/core"):
		return Config{Type: TypeNodeNest, Backend: &Backend{StartCommand: "npm run start:dev", Port: 3000, Host: "localhost"}}
	case hasDep(deps, "express"), hasDep(deps, "fastify"):
		return Config{Type: TypeNodeExpress, Backend: &Backend{StartCommand: "npm start", Port: 3000, Host: "localhost"}}
	default:
		return Config{Type: TypeNodeTool}
	}
}

func detectRust(cargoToml string) Config {
	for _, fw := range []string{"axum", "actix-web", "warp", "rocket"} {
		if strings.Contains(cargoToml, fw) {
			return Config{Type: TypeRustBackend, Backend: &Backend{StartCommand: "cargo run", Port: 3000, Host: "localhost"}}
		}
	}
	return Config{Type: TypeRustCLI}
}

func frontendDevCommand(pkg map[string]any) string {
	if pkg == nil {
		return "npm run dev"
	}
	if scripts, ok := pkg["scripts"].(map[string]any); ok {
		if _, ok := scripts["dev"]; ok {
			return "npm run dev"
		}
	}
	return "npm start"
}

func backendDevCommand(hasCargoToml, hasGoMod bool) string {
	switch {
	case hasCargoToml:
		return "cargo run"
	case hasGoMod:
		return "go run ."
	default:
		return "python main.py"
	}
}

func mergedDeps(pkg map[string]any) map[string]any {
	deps := map[string]any{}
	for _, key := range []string{"dependencies", "devDependencies"} {
		if m, ok := pkg[key].(map[string]any); ok {
			for k, v := range m {
				deps[k] = v
			}
		}
	}
	return deps
}

func hasDep(deps map[string]any, name string) bool {
	_, ok := deps[name]
	return ok
}

func readPackageJSON(dir string) (bool, map[string]any) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return false, nil
	}
	var pkg map[string]any
	if err := json.Unmarshal(data, &pkg); err != nil {
		return true, nil
	}
	return true, pkg
}

func fileContains(dir, name string) (bool, string) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return false, ""
	}
	return true, string(data)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasPythonEntrypoint(dir string) bool {
	return exists(filepath.Join(dir, "main.py")) || exists(filepath.Join(dir, "app.py"))
}

package sandbox

import (
	"github.com/ChamsBouzaiene/foreman/internal/workspace"
)

// ImageFor returns the Docker image to use for a project type. A custom
// image from the config takes precedence.
func ImageFor(projectType workspace.ProjectType, config Config) string {
	if config.DockerImage != "" {
		return config.DockerImage
	}

	switch projectType {
	case workspace.ProjectTypeGo:
		return "golang:alpine"
	case workspace.ProjectTypeNode:
		return "node:alpine"
	case workspace.ProjectTypePython:
		return "python:alpine"
	case workspace.ProjectTypeRust:
		return "rust:alpine"
	default:
		return "alpine:latest"
	}
}

package sandbox

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Mode selects the sandbox execution backend.
type Mode string

const (
	// ModeDocker uses Docker containers for isolation.
	ModeDocker Mode = "docker"
	// ModeHost runs commands directly on the host (no isolation).
	ModeHost Mode = "host"
	// ModeAuto picks Docker when available, otherwise falls back to host.
	ModeAuto Mode = "auto"
)

// Config holds sandbox execution settings.
type Config struct {
	Mode        Mode
	DockerImage string        // custom image override
	CPU         string        // CPU limit, e.g. "2"
	Memory      string        // memory limit, e.g. "1g"
	CmdTimeout  time.Duration // default command timeout (0 = built-in default)
}

// DefaultConfig reads the sandbox configuration from the environment.
func DefaultConfig() Config {
	modeStr := strings.ToLower(os.Getenv("FOREMAN_SANDBOX_MODE"))
	if modeStr == "" {
		modeStr = "auto"
	}

	var mode Mode
	switch modeStr {
	case "docker":
		mode = ModeDocker
	case "host":
		mode = ModeHost
	case "auto":
		mode = ModeAuto
	default:
		log.Printf("WARNING: Unknown FOREMAN_SANDBOX_MODE value '%s', defaulting to 'auto'", modeStr)
		mode = ModeAuto
	}

	cmdTimeout := defaultCmdTimeout
	if timeoutStr := os.Getenv("FOREMAN_CMD_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			cmdTimeout = d
		} else {
			log.Printf("WARNING: Invalid FOREMAN_CMD_TIMEOUT value '%s', using default %s", timeoutStr, defaultCmdTimeout)
		}
	}

	return Config{
		Mode:        mode,
		DockerImage: os.Getenv("FOREMAN_DOCKER_IMAGE"),
		CPU:         getEnvOrDefault("FOREMAN_DOCKER_CPU", "2"),
		Memory:      getEnvOrDefault("FOREMAN_DOCKER_MEMORY", "1g"),
		CmdTimeout:  cmdTimeout,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// IsDockerAvailable checks whether the Docker daemon is reachable.
func IsDockerAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "docker", "ps")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

// NewDefaultRunner creates a runner per the configured mode, falling back to
// the host executor when Docker is requested but unavailable.
func NewDefaultRunner() Runner {
	config := DefaultConfig()
	ctx := context.Background()

	switch config.Mode {
	case ModeDocker:
		if !IsDockerAvailable(ctx) {
			log.Printf("WARNING: Docker mode requested but Docker is not available. Falling back to host executor.")
			return &HostRunner{config: config}
		}
		dockerRunner, err := NewDockerRunner(config)
		if err != nil {
			log.Printf("WARNING: Failed to create Docker runner: %v. Falling back to host executor.", err)
			return &HostRunner{config: config}
		}
		return dockerRunner

	case ModeHost:
		log.Printf("WARNING: Using host executor (no sandboxing). Generated project commands run directly on this machine.")
		return &HostRunner{config: config}

	default: // ModeAuto
		if IsDockerAvailable(ctx) {
			dockerRunner, err := NewDockerRunner(config)
			if err != nil {
				log.Printf("WARNING: Docker available but failed to create runner: %v. Falling back to host executor.", err)
				return &HostRunner{config: config}
			}
			return dockerRunner
		}
		log.Printf("WARNING: Docker not available. Using host executor (no sandboxing).")
		return &HostRunner{config: config}
	}
}

// NewRunner creates a specific runner implementation.
func NewRunner(mode Mode, config Config) (Runner, error) {
	switch mode {
	case ModeDocker:
		return NewDockerRunner(config)
	case ModeHost:
		return &HostRunner{config: config}, nil
	default:
		return nil, fmt.Errorf("unknown runner mode: %s", mode)
	}
}

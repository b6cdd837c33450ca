package dispatch

import (
	"log"
	"os"
	"strings"
)

// Config is the dispatcher's full runtime configuration.
type Config struct {
	Shell ShellConfig
}

// DefaultConfig mirrors the dispatcher's Python default configuration.
func DefaultConfig() Config {
	return Config{Shell: DefaultShellConfig()}
}

// Service is the three-stage command dispatch pipeline. It owns no mutable
// state beyond its logger, per spec.md §3 ("Dispatcher owns no mutable
// state beyond a logger").
type Service struct {
	cfg    Config
	logger *log.Logger
}

// New constructs a Service with explicit configuration (no package-level
// singleton, per Design Note §9).
func New(cfg Config) *Service {
	return &Service{
		cfg:    cfg,
		logger: log.New(os.Stdout, "[DISPATCH] ", log.LstdFlags),
	}
}

const debugFlag = "--dispatch-debug "

// Dispatch routes raw user input through Stage 1 (canonical match), Stage 2
// (shell validation), and Stage 3 (skill inference), in that fixed order.
func (s *Service) Dispatch(userInput string) Response {
	resp := baseResponse()

	if userInput == "" {
		resp.Status = "error"
		resp.Message = "Command required"
		return resp
	}

	debug := strings.Contains(userInput, strings.TrimSpace(debugFlag))
	if debug {
		userInput = strings.TrimSpace(strings.Replace(userInput, debugFlag, "", 1))
		resp.Debug = &Debug{Enabled: true, RouteTrace: []RouteTraceEntry{}}
	}

	// ---- Stage 1: canonical command matching ----
	s.logger.Printf("[STAGE 1] matching: %s", userInput)
	command, confidence := matchUcodeCommand(userInput)

	if debug {
		resp.Debug.RouteTrace = append(resp.Debug.RouteTrace, RouteTraceEntry{
			Stage: 1, Decision: "match", Command: command, Confidence: confidence,
		})
	}

	if confidence >= 0.95 {
		resp.Stage = 1
		resp.Command = command
		resp.Confidence = confidence
		resp.DispatchTo = "ucode"
		if debug {
			resp.Debug.RouteTrace = append(resp.Debug.RouteTrace, RouteTraceEntry{
				Stage: 1, Decision: "dispatch", DispatchTo: "ucode",
			})
		}
		return resp
	}

	if confidence >= 0.80 {
		resp.Stage = 1
		resp.Command = command
		resp.Confidence = confidence
		resp.DispatchTo = "confirm"
		if debug {
			resp.Debug.RouteTrace = append(resp.Debug.RouteTrace, RouteTraceEntry{
				Stage: 1, Decision: "dispatch", DispatchTo: "confirm",
			})
		}
		return resp
	}

	// ---- Stage 2: shell validation ----
	if s.cfg.Shell.Enabled {
		s.logger.Printf("[STAGE 2] validating shell command")
		isSafe, reason := validateShellCommand(userInput, s.cfg.Shell)

		if debug {
			safeCopy := isSafe
			resp.Debug.RouteTrace = append(resp.Debug.RouteTrace, RouteTraceEntry{
				Stage: 2, Decision: "validate", IsSafe: &safeCopy, Reason: reason,
			})
		}

		if isSafe {
			payload := buildShellPayload(s.cfg.Shell, userInput, reason)
			resp.Stage = 2
			resp.Shell = payload
			if payload.RequiresConfirmation {
				resp.Status = "pending"
				resp.Message = "Shell command requires explicit confirmation"
				resp.DispatchTo = "confirm"
				if debug {
					resp.Debug.RouteTrace = append(resp.Debug.RouteTrace, RouteTraceEntry{
						Stage: 2, Decision: "confirm_required", DispatchTo: "confirm",
						Reason: payload.ConfirmationReason,
					})
				}
			} else {
				resp.Message = "Shell passthrough"
				resp.DispatchTo = "shell"
				if debug {
					resp.Debug.RouteTrace = append(resp.Debug.RouteTrace, RouteTraceEntry{
						Stage: 2, Decision: "dispatch", DispatchTo: "shell",
					})
				}
			}
			return resp
		}
	} else if debug {
		resp.Debug.RouteTrace = append(resp.Debug.RouteTrace, RouteTraceEntry{
			Stage: 2, Decision: "skip", Reason: "shell_disabled",
		})
	}

	// ---- Stage 3: skill inference (never fails) ----
	s.logger.Printf("[STAGE 3] routing to skill fallback")
	skill := inferVibeSkill(userInput)

	if debug {
		resp.Debug.RouteTrace = append(resp.Debug.RouteTrace, RouteTraceEntry{
			Stage: 3, Decision: "dispatch", DispatchTo: "vibe", Skill: skill,
		})
	}

	resp.Stage = 3
	resp.Skill = skill
	resp.Message = "Routing to Vibe skill: " + skill
	resp.DispatchTo = "vibe"
	return resp
}

package dispatch

// ContractVersion and RouteOrder are frozen per spec: every dispatch
// response, including errors, carries them verbatim.
const ContractVersion = "m1.1"

var RouteOrder = []string{"ucode", "shell", "vibe"}

// Contract is the frozen route-order metadata attached to every envelope.
type Contract struct {
	Version    string   `json:"version"`
	RouteOrder []string `json:"route_order"`
}

func newContract() Contract {
	order := make([]string, len(RouteOrder))
	copy(order, RouteOrder)
	return Contract{Version: ContractVersion, RouteOrder: order}
}

// ShellPayload is the Stage 2 shell-passthrough descriptor.
type ShellPayload struct {
	Command              string `json:"command"`
	Args                 string `json:"args"`
	Raw                  string `json:"raw"`
	ValidationReason     string `json:"validation_reason"`
	AllowlistEnabled     bool   `json:"allowlist_enabled"`
	BlocklistEnabled     bool   `json:"blocklist_enabled"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	ConfirmationReason   string `json:"confirmation_reason"`
}

// RouteTraceEntry is one row of the optional debug trace.
type RouteTraceEntry struct {
	Stage      int    `json:"stage"`
	Decision   string `json:"decision"`
	Command    string `json:"command,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	DispatchTo string `json:"dispatch_to,omitempty"`
	Skill      string `json:"skill,omitempty"`
	IsSafe     *bool  `json:"is_safe,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Debug carries the optional route trace.
type Debug struct {
	Enabled   bool              `json:"enabled,omitempty"`
	RouteTrace []RouteTraceEntry `json:"route_trace,omitempty"`
}

// Response is the dispatch response envelope described in spec.md §3.
type Response struct {
	Status     string        `json:"status"`
	Stage      int           `json:"stage,omitempty"`
	DispatchTo string        `json:"dispatch_to,omitempty"`
	Command    string        `json:"command,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Skill      string        `json:"skill,omitempty"`
	Message    string        `json:"message,omitempty"`
	Shell      *ShellPayload `json:"shell,omitempty"`
	Debug      *Debug        `json:"debug,omitempty"`
	Contract   Contract      `json:"contract"`
}

func baseResponse() Response {
	return Response{Status: "success", Contract: newContract()}
}

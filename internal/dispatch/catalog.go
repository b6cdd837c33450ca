package dispatch

import "strings"

// CanonicalCommands is the immutable set of canonical uppercase command
// tokens. The dispatcher never mutates this map at runtime.
var CanonicalCommands = map[string]struct{}{
	// Navigation
	"MAP": {}, "ANCHOR": {}, "GRID": {}, "PANEL": {}, "GOTO": {}, "FIND": {},
	// Information
	"TELL": {}, "HELP": {}, "STATUS": {},
	// Game state
	"BAG": {}, "GRAB": {}, "SPAWN": {}, "SAVE": {}, "LOAD": {},
	// System/runtime
	"HEALTH": {}, "VERIFY": {}, "REPAIR": {}, "REBOOT": {}, "SETUP": {},
	"UID": {}, "TOKEN": {}, "GHOST": {}, "SONIC": {}, "MUSIC": {}, "DEV": {},
	"LOGS": {}, "SCHEDULER": {}, "SCRIPT": {}, "THEME": {}, "MODE": {},
	"SKIN": {}, "VIEWPORT": {}, "DRAW": {},
	// User/gameplay
	"USER": {}, "PLAY": {}, "RULE": {},
	// Maintenance/data
	"DESTROY": {}, "UNDO": {}, "MIGRATE": {}, "SEED": {}, "BACKUP": {},
	"RESTORE": {}, "TIDY": {}, "CLEAN": {}, "COMPOST": {},
	// NPC/dialogue
	"NPC": {}, "SEND": {},
	// Wizard/config
	"CONFIG": {}, "WIZARD": {}, "EMPIRE": {},
	// Workspace/content/files
	"BINDER": {}, "PLACE": {}, "STORY": {}, "RUN": {}, "READ": {}, "FILE": {},
	// Library/offline assistant
	"LIBRARY": {}, "UCODE": {},
}

// SubcommandAliases rewrites legacy/short tokens to their canonical command.
var SubcommandAliases = map[string]string{
	"PAT":      "DRAW",
	"PATTERN":  "DRAW",
	"DATA":     "RUN",
	"STAT":     "STATUS",
	"STATE":    "STATUS",
	"SEARCH":   "FIND",
	"EDIT":     "FILE",
	"NEW":      "FILE",
	"UCLI":     "UCODE",
	"RESTART":  "REBOOT",
	"SCHEDULE": "SCHEDULER",
	"TALK":     "SEND",
}

// AliasPrefixParams injects leading positional parameters for aliases that
// need to preserve caller intent once rewritten to their canonical command
// (e.g. NormalizeCommandTokens("NEW foo.md") returns FILE with args
// ["NEW", "foo.md"]).
var AliasPrefixParams = map[string][]string{
	"NEW":  {"NEW"},
	"EDIT": {"EDIT"},
}

func isCanonical(token string) bool {
	_, ok := CanonicalCommands[token]
	return ok
}

// NormalizeCommandTokens applies the alias rewrite and prefix-parameter
// injection rules to a raw command line, independent of fuzzy matching.
// Used by callers that already know their input is a canonical/aliased
// command (e.g. a slash-command resolver) and want the expanded args.
func NormalizeCommandTokens(commandText string) (string, []string) {
	fields := strings.Fields(commandText)
	if len(fields) == 0 {
		return "", nil
	}

	rawName := strings.ToUpper(fields[0])
	params := fields[1:]

	cmdName := rawName
	if canonical, ok := SubcommandAliases[rawName]; ok {
		cmdName = canonical
	}
	if prefix, ok := AliasPrefixParams[rawName]; ok {
		params = append(append([]string{}, prefix...), params...)
	}

	return cmdName, params
}

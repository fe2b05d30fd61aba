package domain

import "strings"

// DefaultAwakeningStage is reported before the gateway ever sets a stage.
const DefaultAwakeningStage = "1"

// UserPersona accumulates what the gateway infers about the partner across
// exchanges. It is fed back into every classification call.
type UserPersona struct {
	Summary        string `json:"summary,omitempty"`
	AwakeningStage string `json:"awakeningStage,omitempty"`
}

// Stage returns the current stage or the default one.
func (p UserPersona) Stage() string {
	if p.AwakeningStage == "" {
		return DefaultAwakeningStage
	}
	return p.AwakeningStage
}

// Apply folds one exchange into the persona. The stage is replaced when a new
// value is reported; the delta is appended to the summary. When maxRunes > 0 only
// the most recent maxRunes runes of the summary are kept.
func (p *UserPersona) Apply(delta, stage string, maxRunes int) {
	if s := strings.TrimSpace(stage); s != "" {
		p.AwakeningStage = s
	} else if p.AwakeningStage == "" {
		p.AwakeningStage = DefaultAwakeningStage
	}

	delta = strings.TrimSpace(delta)
	if delta != "" {
		if p.Summary != "" {
			p.Summary += " "
		}
		p.Summary += delta
	}

	if maxRunes > 0 {
		r := []rune(p.Summary)
		if len(r) > maxRunes {
			p.Summary = strings.TrimSpace(string(r[len(r)-maxRunes:]))
		}
	}
}

package domain

import (
	"strings"
	"time"
)

type SessionID string
type MessageID string

// Sender identifies which pipeline stage produced a message. It is a control-flow
// tag only; human readable labels live in the presentation layer.
type Sender string

const (
	SenderPartner            Sender = "partner"
	SenderSupervisor         Sender = "supervisor"
	SenderAwakenedSupervisor Sender = "awakened_supervisor"

	// Shared by both chains
	SenderBodhicittaCore Sender = "bodhicitta_core"
	SenderManas          Sender = "manas"
	SenderLogosPrime     Sender = "logos_prime"
	SenderMythos         Sender = "mythos"

	// Garbha chain
	SenderAlaya Sender = "alaya"

	// Vajra chain
	SenderHokai Sender = "hokai_taisho_chi"
	SenderDaien Sender = "daien_kyo_chi"

	// Integration stage closing every chain
	SenderTathagata Sender = "tathagata"

	// Media chain
	SenderVeo         Sender = "veo_engine"
	SenderImageEngine Sender = "image_engine"
)

var internalSenders = map[Sender]bool{
	SenderSupervisor:         true,
	SenderAwakenedSupervisor: true,
	SenderBodhicittaCore:     true,
	SenderManas:              true,
	SenderLogosPrime:         true,
	SenderMythos:             true,
	SenderAlaya:              true,
	SenderHokai:              true,
	SenderDaien:              true,
}

// Internal reports whether messages from this stage are intermediate reasoning
// that a UI may collapse.
func (s Sender) Internal() bool {
	return internalSenders[s]
}

// Valid reports whether s is one of the known stage identities.
func (s Sender) Valid() bool {
	switch s {
	case SenderPartner, SenderTathagata, SenderVeo, SenderImageEngine:
		return true
	}
	return internalSenders[s]
}

// Engine is the pipeline tag chosen by the classification call.
type Engine string

const (
	EngineGarbha Engine = "GARBHA"
	EngineVajra  Engine = "VAJRA"
	EngineVideo  Engine = "VIDEO"
	EngineImage  Engine = "IMAGE"
)

// ParseEngine normalizes the tag reported by the model. Unknown tags return false.
func ParseEngine(s string) (Engine, bool) {
	switch Engine(upper(s)) {
	case EngineGarbha:
		return EngineGarbha, true
	case EngineVajra:
		return EngineVajra, true
	case EngineVideo:
		return EngineVideo, true
	case EngineImage:
		return EngineImage, true
	}
	return Engine(s), false
}

// MultiStage reports whether the engine runs a chained sequence of stages.
func (e Engine) MultiStage() bool {
	return e == EngineGarbha || e == EngineVajra
}

// Media reports whether the engine delegates to a media generation call.
func (e Engine) Media() bool {
	return e == EngineVideo || e == EngineImage
}

// Style is the response style ("upaya") requested by the partner.
type Style string

const (
	StyleGentle Style = "GENTLE"
	StyleStrict Style = "STRICT"
	StyleZen    Style = "ZEN"
)

// ParseStyle falls back to StyleGentle for blank or unknown input.
func ParseStyle(s string) Style {
	switch Style(upper(s)) {
	case StyleStrict:
		return StyleStrict
	case StyleZen:
		return StyleZen
	default:
		return StyleGentle
	}
}

type Timestamp = time.Time

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

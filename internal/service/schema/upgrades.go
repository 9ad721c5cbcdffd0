package schema

import (
	"fmt"

	"github.com/studypath/studypath-backend/internal/domain"
)

const (
	slotUserData    = "user_data"
	slotPreferences = "preferences"
)

// upgrade rewrites a slot document from one format version to the next.
// Upgrades are applied in order until the document reaches CurrentVersion.
type upgrade struct {
	from  int
	to    int
	apply func(slot string, doc map[string]any)
}

var upgrades = []upgrade{
	{from: 1, to: 2, apply: upgradeV1toV2},
	{from: 2, to: 3, apply: upgradeV2toV3},
}

// upgradeV1toV2 backfills preference blocks that v1 clients never wrote.
func upgradeV1toV2(slot string, doc map[string]any) {
	switch slot {
	case slotUserData:
		if _, ok := doc["preferences"].(map[string]any); !ok {
			doc["preferences"] = defaultPreferences()
		}
	case slotPreferences:
		defaults := defaultPreferences()
		for key, value := range defaults {
			if _, ok := doc[key]; !ok {
				doc[key] = value
			}
		}
	}
}

// upgradeV2toV3 normalizes values that v2 clients persisted loosely: themes
// outside the known set fall back to system, and boolean toggles stored as
// 0/1 numbers become real booleans.
func upgradeV2toV3(slot string, doc map[string]any) {
	switch slot {
	case slotUserData:
		if prefs, ok := doc["preferences"].(map[string]any); ok {
			normalizePreferences(prefs)
		}
	case slotPreferences:
		normalizePreferences(doc)
	}
}

func normalizePreferences(prefs map[string]any) {
	theme, _ := prefs["theme"].(string)
	if !domain.Theme(theme).IsValid() {
		prefs["theme"] = string(domain.ThemeSystem)
	}
	prefs["notifications"] = coerceBool(prefs["notifications"], true)
	prefs["soundEffects"] = coerceBool(prefs["soundEffects"], true)
}

// coerceBool accepts booleans and numeric 0/1 values; anything else yields
// the fallback.
func coerceBool(value any, fallback bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	}
	return fallback
}

func defaultPreferences() map[string]any {
	return map[string]any{
		"theme":         string(domain.ThemeSystem),
		"notifications": true,
		"soundEffects":  true,
	}
}

func defaultDocument(slot string) map[string]any {
	switch slot {
	case slotUserData:
		return map[string]any{
			"plans":       []any{},
			"flashcards":  []any{},
			"progress":    map[string]any{},
			"preferences": defaultPreferences(),
		}
	case slotPreferences:
		return defaultPreferences()
	default:
		return map[string]any{}
	}
}

// verifyDocument checks the structural shape an upgraded slot must have
// before it replaces the live payload.
func verifyDocument(slot string, doc map[string]any) error {
	if doc == nil {
		return fmt.Errorf("slot %s: nil document", slot)
	}

	switch slot {
	case slotUserData:
		if _, ok := doc["plans"].([]any); !ok {
			return fmt.Errorf("slot %s: plans is not a list", slot)
		}
		if _, ok := doc["flashcards"].([]any); !ok {
			return fmt.Errorf("slot %s: flashcards is not a list", slot)
		}
		prefs, ok := doc["preferences"].(map[string]any)
		if !ok {
			return fmt.Errorf("slot %s: preferences is not an object", slot)
		}
		return verifyPreferences(slot, prefs)
	case slotPreferences:
		return verifyPreferences(slot, doc)
	}

	return nil
}

func verifyPreferences(slot string, prefs map[string]any) error {
	theme, _ := prefs["theme"].(string)
	if !domain.Theme(theme).IsValid() {
		return fmt.Errorf("slot %s: invalid theme %q", slot, theme)
	}
	if _, ok := prefs["notifications"].(bool); !ok {
		return fmt.Errorf("slot %s: notifications is not a boolean", slot)
	}
	if _, ok := prefs["soundEffects"].(bool); !ok {
		return fmt.Errorf("slot %s: soundEffects is not a boolean", slot)
	}
	return nil
}

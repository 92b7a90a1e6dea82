package game

import (
	"encoding/json"
	"strings"
)

// NpcView is the client-safe projection of an NpcResult.
type NpcView struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Mood       string `json:"mood"`
	Appearance string `json:"appearance"`
}

// View returns the client-safe projection of r. Only NPC results differ from
// the raw result: the secret is dropped and scrubbed from every other field.
func View(r Result) any {
	switch v := r.(type) {
	case NpcResult:
		return NpcView{
			Name:       scrub(v.Name, v.Secret),
			Role:       scrub(v.Role, v.Secret),
			Mood:       scrub(v.Mood, v.Secret),
			Appearance: scrub(v.Appearance, v.Secret),
		}
	case nil:
		return nil
	default:
		return v
	}
}

// scrub removes every occurrence of secret from s. Removal can splice a new
// occurrence together, so it repeats until none remains.
func scrub(s, secret string) string {
	if secret == "" {
		return s
	}
	for strings.Contains(s, secret) {
		s = strings.ReplaceAll(s, secret, "")
	}
	return s
}

// ModelPayload serializes r for the model. Unlike View it keeps server-only
// fields so the narrator can use them. It must never be stored where a
// client can read it back; use ClientPayload for that.
func ModelPayload(r Result) (string, error) {
	if r == nil {
		return "{}", nil
	}
	return encodePayload(r.Type(), r)
}

// ClientPayload serializes View(r) in the same envelope as ModelPayload.
func ClientPayload(r Result) (string, error) {
	if r == nil {
		return "{}", nil
	}
	return encodePayload(r.Type(), View(r))
}

func encodePayload(typ string, result any) (string, error) {
	b, err := json.Marshal(struct {
		Type   string `json:"type"`
		Result any    `json:"result"`
	}{typ, result})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

var (
	validActions = map[string]struct{}{
		retrieval.ActionAdd:    {},
		retrieval.ActionUpdate: {},
		retrieval.ActionDelete: {},
	}
	validTypes = map[string]struct{}{"place": {}, "tip": {}, "category": {}}
)

// Validator checks webhook signatures and payload shape.
type Validator struct {
	secret []byte
}

// NewValidator creates a validator. An empty secret disables signature checks.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Sign returns the hex signature for payload.
func (v *Validator) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload.
func (v *Validator) VerifySignature(payload []byte, signature string) bool {
	if len(v.secret) == 0 {
		return true
	}
	expected := v.Sign(payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// ValidatePayload normalises action and type and checks the update is
// identifiable.
func (v *Validator) ValidatePayload(u *retrieval.Update) error {
	if u.Action == "" {
		return fmt.Errorf("%w: missing 'action' field", errors.ErrInvalidInput)
	}
	u.Action = strings.ToLower(u.Action)
	if _, ok := validActions[u.Action]; !ok {
		return fmt.Errorf("%w: invalid action: %s", errors.ErrInvalidInput, u.Action)
	}
	if u.Type == "" {
		return fmt.Errorf("%w: missing 'type' field", errors.ErrInvalidInput)
	}
	u.Type = strings.ToLower(u.Type)
	if _, ok := validTypes[u.Type]; !ok {
		return fmt.Errorf("%w: invalid type: %s", errors.ErrInvalidInput, u.Type)
	}
	if u.Data == nil {
		return fmt.Errorf("%w: missing 'data' field or not an object", errors.ErrInvalidInput)
	}
	_, hasName := u.Data["name"]
	_, hasID := u.Data["id"]
	if !hasName && !hasID {
		return fmt.Errorf("%w: data must have 'name' or 'id' field", errors.ErrInvalidInput)
	}
	return nil
}

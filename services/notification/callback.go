package notification

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/customeros/vmail/internal/enum"
	"github.com/customeros/vmail/internal/utils"
)

type TargetKind int

const (
	TargetByID TargetKind = iota + 1
	TargetByAddress
)

// Target is what a callback token points at: an email id, or a sender address
// for tokens built from the blocklist and older notifications.
type Target struct {
	Kind  TargetKind
	Value string
}

func ByID(id string) Target {
	return Target{Kind: TargetByID, Value: strings.TrimSpace(id)}
}

func ByAddress(address string) Target {
	return Target{Kind: TargetByAddress, Value: utils.NormalizeAddress(address)}
}

func (t Target) IsAddress() bool {
	return t.Kind == TargetByAddress
}

// Callback is a parsed inline button token "action:target".
type Callback struct {
	Action enum.CallbackAction
	Target Target
}

var knownActions = map[enum.CallbackAction]struct{}{
	enum.ActionBack:        {},
	enum.ActionPreview:     {},
	enum.ActionSummary:     {},
	enum.ActionText:        {},
	enum.ActionHTML:        {},
	enum.ActionDelete:      {},
	enum.ActionBlock:       {},
	enum.ActionWhitelist:   {},
	enum.ActionUnblockList: {},
}

// ParseCallbackData splits on the first ':' and classifies the target once:
// anything containing '@' is an address, everything else an email id.
func ParseCallbackData(data string) (Callback, error) {
	action, target, ok := strings.Cut(strings.TrimSpace(data), ":")
	if !ok {
		return Callback{}, errors.Errorf("malformed callback data %q", data)
	}

	cb := Callback{Action: enum.CallbackAction(action)}
	if _, known := knownActions[cb.Action]; !known {
		return Callback{}, errors.Errorf("unknown callback action %q", action)
	}

	target = strings.TrimSpace(target)
	if target == "" {
		return Callback{}, errors.Errorf("callback %q has no target", action)
	}
	if strings.Contains(target, "@") {
		cb.Target = ByAddress(target)
	} else {
		cb.Target = ByID(target)
	}
	return cb, nil
}

func (c Callback) Data() string {
	return CallbackData(c.Action, c.Target.Value)
}

func CallbackData(action enum.CallbackAction, target string) string {
	return action.String() + ":" + target
}

package domain

// Action kinds understood by the dispatcher.
const (
	ActionBlocks             = "blocks"
	ActionRemote             = "remote"
	ActionURLWidget          = "urlwidget" // legacy alias of remote
	ActionRegisteredFunction = "registeredfunction"
	ActionRegistedFunction   = "registedfunction" // legacy spelling
	ActionScript             = "script"
	ActionMethod             = "method"
	ActionDispatch           = "event"
	ActionMultiple           = "multiple"
)

// Placement modes for blocks/remote actions.
const (
	ModeReplace = "replace"
	ModeAppend  = "append"
)

// SelfID is the identifier segment that resolves to the search root itself.
const SelfID = "self"

// BindSpec is the decoded form of one entry of a description's "binds" list.
// Field names follow the wire format; Rest keeps any action-specific extras.
type BindSpec struct {
	// Wid names the node the event is bound on (default "self"). TargetID is accepted as an alias.
	Wid      string `mapstructure:"wid"`
	TargetID string `mapstructure:"targetId"`

	Event      string `mapstructure:"event"`
	ActionType string `mapstructure:"actiontype"`

	// Target names the node the action applies to (default "self").
	Target string `mapstructure:"target"`
	Mode   string `mapstructure:"mode"`

	Options map[string]any `mapstructure:"options"`
	Params  map[string]any `mapstructure:"params"`

	DataWidget string            `mapstructure:"datawidget"`
	KeyMapping map[string]string `mapstructure:"keymapping"`

	RFName        string           `mapstructure:"rfname"`
	Script        string           `mapstructure:"script"`
	Method        string           `mapstructure:"method"`
	DispatchEvent string           `mapstructure:"dispatch_event"`
	Actions       []map[string]any `mapstructure:"actions"`
	Conform       map[string]any   `mapstructure:"conform"`

	Rest map[string]any `mapstructure:",remain"`
}

// BindNode returns the identifier of the node the event is registered on.
func (b BindSpec) BindNode() string {
	if b.Wid != "" {
		return b.Wid
	}
	if b.TargetID != "" {
		return b.TargetID
	}
	return SelfID
}

// TargetNode returns the identifier of the node the action applies to.
func (b BindSpec) TargetNode() string {
	if b.Target != "" {
		return b.Target
	}
	return SelfID
}

// PlacementMode returns the blocks/remote placement, defaulting to replace.
func (b BindSpec) PlacementMode() string {
	if b.Mode == "" {
		return ModeReplace
	}
	return b.Mode
}

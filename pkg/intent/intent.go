// Package intent models the launch request handed to the platform: an action,
// a data URI with its MIME type, launch flags, and extras.
package intent

// Well-known actions.
const (
	ActionView                           = "android.intent.action.VIEW"
	ActionChooser                        = "android.intent.action.CHOOSER"
	ActionManageAllFilesAccessPermission = "android.settings.MANAGE_ALL_FILES_ACCESS_PERMISSION"
)

// Well-known extras.
const (
	// ExtraNotUnknownSource tells the package installer the archive comes from a trusted caller.
	ExtraNotUnknownSource = "android.intent.extra.NOT_UNKNOWN_SOURCE"
	// ExtraIntent carries the wrapped target of a chooser.
	ExtraIntent = "android.intent.extra.INTENT"
	// ExtraTitle carries the chooser title.
	ExtraTitle = "android.intent.extra.TITLE"
)

// Flag is a launch flag bit.
type Flag uint32

const (
	// FlagGrantReadURIPermission propagates read access on the data URI to the receiver.
	FlagGrantReadURIPermission Flag = 0x00000001
	// FlagActivityNewTask starts the receiver in its own task.
	FlagActivityNewTask Flag = 0x10000000
)

// Intent is a platform launch request.
type Intent struct {
	Action string
	Data   string
	Type   string
	Flags  Flag
	Extras map[string]any
}

// New returns an intent for action.
func New(action string) *Intent {
	return &Intent{Action: action}
}

// SetDataAndType sets the data URI and its MIME type together.
func (i *Intent) SetDataAndType(data, mimeType string) *Intent {
	i.Data = data
	i.Type = mimeType
	return i
}

// SetFlags replaces all flags.
func (i *Intent) SetFlags(flags Flag) *Intent {
	i.Flags = flags
	return i
}

// AddFlags sets flags in addition to the existing ones.
func (i *Intent) AddFlags(flags Flag) *Intent {
	i.Flags |= flags
	return i
}

// HasFlag reports whether every bit of flag is set.
func (i *Intent) HasFlag(flag Flag) bool {
	return i.Flags&flag == flag
}

// PutExtra stores an extra value.
func (i *Intent) PutExtra(key string, value any) *Intent {
	if i.Extras == nil {
		i.Extras = make(map[string]any)
	}
	i.Extras[key] = value
	return i
}

// Extra returns an extra value.
func (i *Intent) Extra(key string) (any, bool) {
	v, ok := i.Extras[key]
	return v, ok
}

// IsChooser reports whether the intent wraps a target behind the app chooser.
func (i *Intent) IsChooser() bool {
	return i.Action == ActionChooser
}

// Target returns the wrapped intent of a chooser.
func (i *Intent) Target() (*Intent, bool) {
	v, ok := i.Extras[ExtraIntent]
	if !ok {
		return nil, false
	}
	target, ok := v.(*Intent)
	return target, ok
}

// CreateChooser wraps target so the platform always shows the app chooser
// with the given title. The chooser inherits the target's flags so URI grants
// reach whichever app the user picks.
func CreateChooser(target *Intent, title string) *Intent {
	chooser := New(ActionChooser)
	chooser.Flags = target.Flags
	chooser.PutExtra(ExtraIntent, target)
	chooser.PutExtra(ExtraTitle, title)
	return chooser
}

// ToMap encodes the intent for a platform channel.
func (i *Intent) ToMap() map[string]any {
	m := map[string]any{
		"action": i.Action,
		"flags":  int64(i.Flags),
	}
	if i.Data != "" {
		m["data"] = i.Data
	}
	if i.Type != "" {
		m["type"] = i.Type
	}
	if len(i.Extras) > 0 {
		extras := make(map[string]any, len(i.Extras))
		for k, v := range i.Extras {
			if nested, ok := v.(*Intent); ok {
				extras[k] = nested.ToMap()
				continue
			}
			extras[k] = v
		}
		m["extras"] = extras
	}
	return m
}

package bridge

// ExternalPrefix starts the key of every element found by
// QueryElementByExternalID. Generated keys never start with it.
const ExternalPrefix = "#"

// ExternalKey returns the key a host registers a found element under.
func ExternalKey(id string) string {
	return ExternalPrefix + id
}

// Host is the renderer's command surface. Every primitive is keyed by the
// element key assigned by the bridge module.
type Host interface {
	CreateElement(key string, cmd Command) error
	UpdateElement(key string, cmd Command) error
	InsertElement(key string, at Placement) error
	// RemoveElement detaches the element and must call done once finished.
	RemoveElement(key string, done func()) error
	DestroyElement(key string) error
	// QueryElementByExternalID looks up an element the host knows by id
	// attribute and returns its tag. A found element is addressed as
	// ExternalKey(id) from then on.
	QueryElementByExternalID(id string) (tag string, found bool, err error)
	UpdateTextContent(key, text string) error
}

// TitleHost is implemented by hosts that expose a document title.
type TitleHost interface {
	SetTitle(title string) error
	Title() (string, error)
}

// Observer is notified of every command the transport issues.
type Observer interface {
	ObserveCommand(op Op, err error)
}

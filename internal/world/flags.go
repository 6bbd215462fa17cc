package world

// Flag marks one kind of update block an entity carries this tick.
type Flag uint16

const (
	FlagAppearance Flag = 1 << iota
	FlagChat
	FlagGraphics
	FlagAnimation
	FlagForcedChat
	FlagInteracting
	FlagFaceCoordinate
	FlagTransform
)

var flagNames = map[Flag]string{
	FlagAppearance:     "appearance",
	FlagChat:           "chat",
	FlagGraphics:       "graphics",
	FlagAnimation:      "animation",
	FlagForcedChat:     "forced_chat",
	FlagInteracting:    "interacting",
	FlagFaceCoordinate: "face_coordinate",
	FlagTransform:      "transform",
}

func (f Flag) String() string {
	if n, ok := flagNames[f]; ok {
		return n
	}
	return "unknown"
}

// FlagSet is a set of Flags.
type FlagSet uint16

func (s FlagSet) Has(f Flag) bool { return s&FlagSet(f) != 0 }

func (s FlagSet) With(f Flag) FlagSet { return s | FlagSet(f) }

func (s FlagSet) Empty() bool { return s == 0 }

// NoInteraction is the interacting-entity value that clears a focus.
const NoInteraction = 65535

type Animation struct {
	ID    int
	Delay int
}

type Graphic struct {
	ID     int
	Height int
	Delay  int
}

// ChatMessage holds a public chat line in the client's packed text form.
type ChatMessage struct {
	Color   int
	Effects int
	Rights  int
	Packed  []byte
}

// Blocks holds the payload of every block a FlagSet may announce. Only
// the fields whose flag is set are meaningful.
type Blocks struct {
	Animation   Animation
	Graphic     Graphic
	Chat        ChatMessage
	ForcedChat  string
	Interacting int
	Face        Position
	Transform   int
}

// Deferred holds the blocks an observer's update had no room for. They
// are sent to that observer with the entity's next update.
type Deferred struct {
	Flags  FlagSet
	Blocks Blocks
}

// Merge folds a newer frame into d. A newer block replaces a deferred one
// of the same kind.
func (d Deferred) Merge(flags FlagSet, b Blocks) (FlagSet, Blocks) {
	if d.Flags.Empty() {
		return flags, b
	}
	out := d.Blocks
	if flags.Has(FlagAnimation) {
		out.Animation = b.Animation
	}
	if flags.Has(FlagGraphics) {
		out.Graphic = b.Graphic
	}
	if flags.Has(FlagChat) {
		out.Chat = b.Chat
	}
	if flags.Has(FlagForcedChat) {
		out.ForcedChat = b.ForcedChat
	}
	if flags.Has(FlagInteracting) {
		out.Interacting = b.Interacting
	}
	if flags.Has(FlagFaceCoordinate) {
		out.Face = b.Face
	}
	if flags.Has(FlagTransform) {
		out.Transform = b.Transform
	}
	return d.Flags | flags, out
}

// Appearance is the player's look as the appearance block encodes it.
type Appearance struct {
	Gender   int
	HeadIcon int
	// Body holds head, torso, arms, hands, legs, feet and beard kits.
	Body   [7]int
	Colors [5]int
}

// DefaultAppearance is the look given to new accounts.
func DefaultAppearance() Appearance {
	return Appearance{
		Body:   [7]int{0, 18, 26, 33, 36, 42, 10},
		Colors: [5]int{7, 8, 9, 5, 0},
	}
}

// Valid reports whether every kit and colour is inside the ranges the
// character design screen offers.
func (a Appearance) Valid() bool {
	if a.Gender != 0 && a.Gender != 1 {
		return false
	}
	for _, kit := range a.Body {
		if kit < 0 || kit > 255 {
			return false
		}
	}
	for _, c := range a.Colors {
		if c < 0 || c > 15 {
			return false
		}
	}
	return true
}

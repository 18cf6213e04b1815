package stride

// Direction of a walk.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

type targetKind int

const (
	targetLatest targetKind = iota
	targetKey
	targetOneStep
	targetEverything
)

// Target says where a walk should stop. The four shapes are explicit so
// that "no argument" never has to be inferred: Latest and To are valid
// going up, OneStep, Everything and To going down.
type Target struct {
	kind targetKind
	key  string
}

// Latest walks up through every pending unit.
func Latest() Target {
	return Target{kind: targetLatest}
}

// To walks until the unit with the given key is the last one applied
// (up) or the last one still applied (down). Matching is exact.
func To(key string) Target {
	return Target{kind: targetKey, key: key}
}

// OneStep reverts exactly one unit.
func OneStep() Target {
	return Target{kind: targetOneStep}
}

// Everything reverts to the empty state.
func Everything() Target {
	return Target{kind: targetEverything}
}

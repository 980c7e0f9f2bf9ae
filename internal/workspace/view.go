package workspace

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid view transition")

type View string

const (
	ViewList View = "list"
	ViewForm View = "form"
	ViewView View = "view"
)

var transitions = map[View]map[View]bool{
	ViewList: {ViewForm: true, ViewView: true},
	ViewForm: {ViewList: true},
	ViewView: {ViewForm: true, ViewList: true},
}

// ViewController tracks which screen a workspace is on. It has no side
// effects beyond the state itself; callers hold the store lock.
type ViewController struct {
	current View
}

func NewViewController() *ViewController {
	return &ViewController{current: ViewList}
}

func (v *ViewController) Current() View { return v.current }

func (v *ViewController) CanGo(to View) bool {
	return transitions[v.current][to]
}

func (v *ViewController) Go(to View) error {
	if !v.CanGo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.current, to)
	}
	v.current = to
	return nil
}

package model

import "fmt"

type Layout string

const (
	LayoutImageLeft  Layout = "Image Left, Info Right"
	LayoutImageRight Layout = "Image Right, Info Left"
	LayoutImageTop   Layout = "Image Top, Info Below"
	LayoutBanner     Layout = "Full Width Banner"
	LayoutInfoOnly   Layout = "Info Only"
)

// DefaultLayout is the layout given to freshly created items.
const DefaultLayout = LayoutImageLeft

func Layouts() []Layout {
	return []Layout{LayoutImageLeft, LayoutImageRight, LayoutImageTop, LayoutBanner, LayoutInfoOnly}
}

func ParseLayout(s string) (Layout, error) {
	for _, layout := range Layouts() {
		if string(layout) == s {
			return layout, nil
		}
	}
	return "", fmt.Errorf("unknown layout %q", s)
}

func (l Layout) Valid() bool {
	_, err := ParseLayout(string(l))
	return err == nil
}

package contracts

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is the vendor spending category stored by the registry as uint8.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryFood
	CategoryMedicine
)

var categoryNames = map[Category]string{
	CategoryNone:     "None",
	CategoryFood:     "Food",
	CategoryMedicine: "Medicine",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// ParseCategory accepts a category name ("food") or its numeric value ("1").
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for c, name := range categoryNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || !Category(n).Valid() {
		return CategoryNone, fmt.Errorf("unknown vendor category %q", s)
	}
	return Category(n), nil
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

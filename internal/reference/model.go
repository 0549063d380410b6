// Package reference serves enum catalogs: the values an enum field may
// take, with display names and ordering.
package reference

// EnumDirectory is one enum catalog.
type EnumDirectory struct {
	Name  string     `yaml:"name" json:"name"`
	Items []EnumItem `yaml:"items" json:"items"`
}

type EnumItem struct {
	Code      string `yaml:"code" json:"code"`
	Name      string `yaml:"name" json:"name"`
	Order     int    `yaml:"order,omitempty" json:"order,omitempty"`
	ValidFrom string `yaml:"valid_from,omitempty" json:"validFrom,omitempty"`
	ValidTo   string `yaml:"valid_to,omitempty" json:"validTo,omitempty"`
}

// Codes lists the item codes in catalog order.
func (d EnumDirectory) Codes() []string {
	out := make([]string, len(d.Items))
	for i, it := range d.Items {
		out[i] = it.Code
	}
	return out
}

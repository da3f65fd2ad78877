// Package endpoint implements USP endpoint identifiers.
package endpoint

import (
	"fmt"
	"strings"
)

// ID identifies a USP Agent or Controller instance.
type ID string

// FromMAC builds an endpoint id of the form "oui:<OUI>:<MAC>".
func FromMAC(oui, mac string) ID {
	return ID(fmt.Sprintf("oui:%s:%s", strings.ToUpper(oui), mac))
}

func (id ID) String() string { return string(id) }

func (id ID) Empty() bool { return id == "" }

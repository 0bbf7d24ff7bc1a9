// Package constraint defines the domains of facts detectors attach to
// symbolic values.
package constraint

import (
	"github.com/cs-au-dk/symbex/utils"

	"github.com/fatih/color"
)

var colorize = struct {
	Domain func(...interface{}) string
	Tag    func(...interface{}) string
}{
	Domain: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiBlue).SprintFunc())(is...)
	},
	Tag: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgCyan).SprintFunc())(is...)
	},
}

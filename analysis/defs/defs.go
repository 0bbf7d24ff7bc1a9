package defs

import (
	u "github.com/cs-au-dk/symbex/utils"

	c "github.com/fatih/color"
)

var colorize = struct {
	Method func(...interface{}) string
	Block  func(...interface{}) string
	Iter   func(...interface{}) string
	Exit   func(...interface{}) string
}{
	Method: func(is ...interface{}) string {
		return u.CanColorize(c.New(c.FgHiBlue).SprintFunc())(is...)
	},
	Block: func(is ...interface{}) string {
		return u.CanColorize(c.New(c.FgHiCyan).SprintFunc())(is...)
	},
	Iter: func(is ...interface{}) string {
		return u.CanColorize(c.New(c.FgHiMagenta).SprintFunc())(is...)
	},
	Exit: func(is ...interface{}) string {
		return u.CanColorize(c.New(c.FgHiRed).SprintFunc())(is...)
	},
}

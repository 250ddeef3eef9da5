// Package templates holds the templ components behind the HTML views.
package templates

//go:generate templ generate

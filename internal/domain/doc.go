// Package domain holds the calendar model that the change log tracks. Calendar
// and Event both satisfy changelog.Content.
package domain

// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/pdflens/internal/logger"
)

// Notifier reports finished extractions outside the browser
type Notifier interface {
	Completed(file string, records int)
	Failed(file string, err error)
}

// New returns a desktop notifier when enabled, otherwise one that does nothing
func New(desktop bool) Notifier {
	if desktop {
		return &Desktop{send: beeep.Notify, alert: beeep.Alert}
	}
	return Nop{}
}

// Nop discards notifications
type Nop struct{}

func (Nop) Completed(string, int) {}
func (Nop) Failed(string, error) {}

// Desktop raises OS notifications through beeep
type Desktop struct {
	send  func(title, message string, icon any) error
	alert func(title, message string, icon any) error
}

// Completed implements Notifier
func (d *Desktop) Completed(file string, records int) {
	message := fmt.Sprintf("%s: %d text fragments extracted", file, records)
	if err := d.send("PDF extraction finished", message, ""); err != nil {
		logger.Warnf("Failed to send OS notification: %v", err)
	}
}

// Failed implements Notifier
func (d *Desktop) Failed(file string, err error) {
	if file == "" {
		file = "Upload"
	}
	message := fmt.Sprintf("%s could not be read: %v", file, err)
	if aerr := d.alert("PDF extraction failed", message, ""); aerr != nil {
		logger.Warnf("Failed to send OS notification: %v", aerr)
	}
}

// Package logging builds the structured logger shared by every component.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger tagged with the service name.
func New(service, level string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return l.WithField("service", service)
}

// Component derives a child logger for one component.
func Component(base *logrus.Entry, name string) *logrus.Entry {
	return base.WithField("component", name)
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

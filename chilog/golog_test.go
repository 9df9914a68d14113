package chilog

import (
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	l := New(LevelInfo)
	assert.NotNil(t, l)
	assert.Equal(t, LevelInfo, l.GetLevel())
}

func TestLogger_LevelControl(t *testing.T) {
	l := New(LevelInfo)

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())

	l.SetLevel(LevelError)
	assert.Equal(t, LevelError, l.GetLevel())

	l.SetLevel(LevelNone)
	assert.Equal(t, LevelNone, l.GetLevel())
}

func TestLogger_Logging(t *testing.T) {
	l := New(LevelDebug)

	l.Debugf("module %q resolved", "lang")
	l.Infof("module %q loaded", "myapp/math")
	l.Warnf("entry node missing exec outputs on %q", "add1")
	l.Errorf("compile failed: %v", assert.AnError)
}

func TestLogger_LevelFiltering(t *testing.T) {
	l := New(LevelError)
	assert.Equal(t, LevelError, l.GetLevel())

	l.Debugf("filtered")
	l.Infof("filtered")
	l.Warnf("filtered")
	l.Errorf("logged")
}

func TestNewWithGolog(t *testing.T) {
	g := golog.New()
	g.SetPrefix("[embedder] ")

	l := NewWithGolog(g)
	assert.NotNil(t, l)
	assert.Equal(t, LevelInfo, l.GetLevel())
}

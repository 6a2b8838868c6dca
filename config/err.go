package config

import (
	"errors"

	"github.com/ezrec/supermips/translate"
)

var f = translate.From

var (
	ErrSyntax      = errors.New(f("config syntax"))
	ErrUnknownKey  = errors.New(f("config key unknown"))
	ErrWindowSize  = errors.New(f("window size invalid"))
	ErrWindowScale = errors.New(f("window scale invalid"))
)

// Copyright © 2024 The QDAP authors

package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// mustBind binds each flag to the viper key of the same name.
func mustBind(flags ...*pflag.Flag) {
	for _, f := range flags {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			panic(err)
		}
	}
}

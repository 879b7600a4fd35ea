package main

// Compiled-in modules. Each registers itself with core.RegisterModule.
import (
	_ "github.com/flemzord/parrot/modules/channel/telegram"
	_ "github.com/flemzord/parrot/modules/provider/openai"
	_ "github.com/flemzord/parrot/modules/store/sqlite"
)

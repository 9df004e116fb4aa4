package logic

import "github.com/rs/zerolog/log"

func logDebug(cmd, msg string) {
	log.Debug().Str("event", "command_logic").Str("command", cmd).Msg(msg)
}

func logError(cmd string, err error, msg string) {
	log.Error().Str("event", "command_logic").Str("command", cmd).Err(err).Msg(msg)
}

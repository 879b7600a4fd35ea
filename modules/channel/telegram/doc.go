// Package telegram is the channel.telegram module: it receives bot updates
// by long polling or through the gateway webhook, and implements
// channel.Sink over sendMessage, editMessageText and sendChatAction.
//
// Only new text messages are delivered. A message is a command when its
// first entity is a bot_command at offset 0, and commands addressed to
// another bot (/cmd@other_bot) are dropped.
//
// The Bot API is called directly with net/http and encoding/json.
package telegram

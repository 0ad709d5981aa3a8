package app

import "github.com/m3rciful/botgate/registration"

const (
	textRegistered        = "You are registered. Now send me the token of your bot."
	textAlreadyRegistered = "You are already registered."
	textAskToken          = "Send me the token of the bot you want to connect."
	textInvalidToken      = "That token does not look valid. Check it and send it again."
	textTokenTaken        = "This token is already in use."
	textBotLinked         = "Bot is bound."
	textTryLater          = "Something went wrong. Please try again later."
	textNoBots            = "You have no bots yet. Use /add_bot to connect one."
	textMyBots            = "Your bots:"
	textNoGroup           = "No group is linked to this bot yet."
	textSlowDown          = "Too many requests, please slow down."
	textUnknown           = "I did not understand that. Use /add_bot to connect a bot or /my_bots to list yours."
)

// replyText maps a registration outcome to the user-facing message.
func replyText(r registration.Reply) string {
	switch r {
	case registration.ReplyRegistered:
		return textRegistered
	case registration.ReplyAlreadyRegistered:
		return textAlreadyRegistered
	case registration.ReplyAskToken:
		return textAskToken
	case registration.ReplyInvalidToken:
		return textInvalidToken
	case registration.ReplyTokenTaken:
		return textTokenTaken
	case registration.ReplyBotLinked:
		return textBotLinked
	case registration.ReplyTryLater:
		return textTryLater
	}
	return ""
}

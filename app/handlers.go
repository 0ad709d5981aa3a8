package app

import (
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botgate/core/logger"
	tg "github.com/m3rciful/botgate/core/telegram"
	"github.com/m3rciful/botgate/core/telegram/callbacks"
	"github.com/m3rciful/botgate/core/telegram/commands"
	tghelpers "github.com/m3rciful/botgate/core/telegram/helpers"
	"github.com/m3rciful/botgate/core/telegram/keyboard"
	"github.com/m3rciful/botgate/registration"
)

const callbackBot = "bot"

// registerHandlers wires commands, the awaiting-token text handler and the
// per-bot callback into the registry and session manager.
func (a *App) registerHandlers(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Register with the gateway",
	})
	reg.RegisterCommand("/add_bot", commands.Command{
		Handler:     a.handleAddBot,
		Description: "Connect a bot by token",
		Aliases:     []string{"addbot"},
	})
	reg.RegisterCommand("/my_bots", commands.Command{
		Handler:     a.handleMyBots,
		Description: "List your connected bots",
		Aliases:     []string{"mybots"},
	})

	if err := reg.RegisterCallback(callbackBot, a.handleBotCallback); err != nil {
		return err
	}

	a.sessions.Handle(registration.StateAwaitingToken, a.handleToken)

	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendText(c, textUnknown)
	})
	return nil
}

func (a *App) handleStart(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "start")
	reply, err := a.svc.Start(ctx, c.Sender().ID)
	if text := replyText(reply); text != "" {
		if sendErr := tghelpers.SendText(c, text); sendErr != nil {
			return sendErr
		}
	}
	return err
}

func (a *App) handleAddBot(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "add_bot")
	reply := a.svc.AddBot(ctx, c.Sender().ID)
	return tghelpers.SendText(c, replyText(reply))
}

func (a *App) handleMyBots(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "my_bots")
	entries, reply, err := a.svc.ListBots(ctx, c.Sender().ID)
	if reply == registration.ReplyTryLater {
		if sendErr := tghelpers.SendText(c, textTryLater); sendErr != nil {
			return sendErr
		}
		return err
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return tghelpers.SendText(c, textNoBots)
	}

	buttons := make([]keyboard.InlineBtn, 0, len(entries))
	for _, e := range entries {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   e.Name,
			Unique: callbackBot,
			Data:   strconv.FormatInt(e.BotID, 10),
		})
	}
	return tghelpers.SendKeyboard(c, textMyBots, keyboard.InlineButtons(buttons))
}

// handleBotCallback answers a directory entry tap. Chat linking has no flow
// yet, so every bot reports the unlinked message.
func (a *App) handleBotCallback(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "bot_callback")
	if botID, err := callbacks.PayloadInt64(c); err == nil {
		logger.Debug(ctx, "registration", "bot.selected",
			slog.Int64("bot_id", botID),
		)
	}
	return tghelpers.SendText(c, textNoGroup)
}

func (a *App) handleToken(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "token_input")
	token := strings.TrimSpace(c.Text())
	reply, err := a.svc.SubmitToken(ctx, c.Sender().ID, token)
	if text := replyText(reply); text != "" {
		if sendErr := tghelpers.SendText(c, text); sendErr != nil {
			return sendErr
		}
	}
	return err
}

func onRateLimited(c tele.Context) error {
	return c.Send(textSlowDown)
}

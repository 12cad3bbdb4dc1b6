// internal/bot/keyboards.go
package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
	"github.com/rovshanmuradov/solsniper-bot/internal/types"
)

var (
	buyAmounts       = [][]string{{"0.1", "0.25", "0.5"}, {"1", "2", "5"}}
	sellPercents     = [][]int{{25, 50}, {75, 100}}
	backButtonRow    = tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", dataBack))
	mainMenuLabel    = "⬅️ Main Menu"
	positionsPerPage = 10
)

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 Buy", dataBuy),
			tgbotapi.NewInlineKeyboardButtonData("💸 Sell", dataSell),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👛 Wallet", dataWallet),
			tgbotapi.NewInlineKeyboardButtonData("📊 Positions", dataPositions),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📜 Trades", dataTrades),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", dataSettings),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", dataMenu),
		),
	)
}

func buyKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buyAmounts)+2)
	for _, line := range buyAmounts {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(line))
		for _, amount := range line {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(amount+" SOL", buyAmountData(amount)))
		}
		rows = append(rows, row)
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✏️ Custom Amount", dataBuyCustom)),
		backButtonRow,
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func sellKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(sellPercents)+1)
	for _, line := range sellPercents {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(line))
		for _, pct := range line {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d%%", pct), sellPercentData(pct)))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", dataSell)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// positionsKeyboard lists one sell button per position.
func positionsKeyboard(positions []models.Position) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(positions)+1)
	for i, p := range positions {
		if i == positionsPerPage {
			break
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💸 "+positionLabel(p), sellTokenData(p.TokenAddress)),
		))
	}
	rows = append(rows, backButtonRow)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func noPositionsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💰 Buy Token", dataBuy)),
		backButtonRow,
	)
}

func walletKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔑 Export Key", dataExportKey),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh Balance", dataRefreshBalance),
		),
		backButtonRow,
	)
}

func settingsKeyboard(settings models.Settings) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(types.SlippagePresets))
	current := settings.Slippage.IntPart()
	for _, pct := range types.SlippagePresets {
		label := fmt.Sprintf("%d%%", pct)
		if int64(pct) == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, slippageData(pct)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row, backButtonRow)
}

func refreshKeyboard(data string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", data)),
		backButtonRow,
	)
}

func tradeDoneKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💸 Sell", dataSell)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(mainMenuLabel, dataBack)),
	)
}

// retryKeyboard repeats the failed action on "Try again".
func retryKeyboard(retryData string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Try again", retryData)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", dataSettings)),
		backButtonRow,
	)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(backButtonRow)
}

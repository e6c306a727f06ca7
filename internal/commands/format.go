package commands

import (
	"fmt"
	"strings"

	"jobpulse/internal/msgsync"
)

// SetupInstructions is posted when the bot joins a guild.
const SetupInstructions = `**Thank you for adding me to your server! 🎉**

Before you can use slash commands, please ensure that I have the **` + "`USE_SLASH_COMMANDS`" + `** permission in the channel where you want to use the commands.

**Instructions to enable Slash Commands:**
1. Go to your server settings.
2. Select the channel where you want the bot to work.
3. Click on **Server Settings** → **Integrations**.
4. Under **Bots/Apps**, click on **Manage** and go to **Commands**
5. Click on the /setup command. Add Channels and select the channel where you want the bot to work.
6. Save the changes.

Once you've set that up, you can start using my slash commands in this channel!

If you need any help, feel free to contact support or check the bot's documentation.`

const messageLimit = 2000

// FormatHistory renders a retrieval page as a chat message.
func FormatHistory(res msgsync.RetrievalResult) string {
	if res.Total == 0 {
		return "No job updates found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Job updates** (page %d/%d, %d total)\n", res.Page, max(res.TotalPages, 1), res.Total)
	if len(res.Messages) == 0 {
		b.WriteString("Nothing on this page.")
		return b.String()
	}
	for _, m := range res.Messages {
		line := historyLine(m)
		if b.Len()+len(line) > messageLimit-4 {
			b.WriteString("…")
			break
		}
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func historyLine(m msgsync.Message) string {
	title, status := "", ""
	for _, e := range m.Embeds {
		if !strings.HasPrefix(e.Title, msgsync.UpdateTitlePrefix) {
			continue
		}
		title = strings.TrimSpace(strings.TrimPrefix(e.Title, msgsync.UpdateTitlePrefix))
		for _, f := range e.Fields {
			if f.Name == msgsync.StatusField {
				status = f.Value
				break
			}
		}
		break
	}
	return fmt.Sprintf("• `%s` **%s** %s\n", m.Timestamp.UTC().Format("Jan 2, 2006"), title, status)
}

package dispatch

import "strings"

// Keyboard labels. The same strings arrive back as message text when a
// button is pressed.
const (
	LabelList     = "📖 Показать записи"
	LabelDownload = "📥 Скачать Excel"
	LabelClear    = "🧹 Очистить файл"
	LabelDelete   = "❌ Удалить строку"
	LabelArchive  = "🗂 Архив"
	LabelGrant    = "👤 Выдать доступ"
)

type command int

const (
	cmdNone command = iota
	cmdStart
	cmdList
	cmdDownload
	cmdClear
	cmdDelete
	cmdArchive
	cmdGrant
	cmdRevoke
	cmdUsers
)

func (c command) String() string {
	switch c {
	case cmdStart:
		return "start"
	case cmdList:
		return "list"
	case cmdDownload:
		return "download"
	case cmdClear:
		return "clear"
	case cmdDelete:
		return "delete"
	case cmdArchive:
		return "archive"
	case cmdGrant:
		return "grant"
	case cmdRevoke:
		return "revoke"
	case cmdUsers:
		return "users"
	default:
		return "text"
	}
}

// superuserOnly commands manage the allow-list.
func (c command) superuserOnly() bool {
	return c == cmdGrant || c == cmdRevoke || c == cmdUsers
}

var slashCommands = map[string]command{
	"/start":    cmdStart,
	"/help":     cmdStart,
	"/list":     cmdList,
	"/download": cmdDownload,
	"/clear":    cmdClear,
	"/delete":   cmdDelete,
	"/archive":  cmdArchive,
	"/grant":    cmdGrant,
	"/revoke":   cmdRevoke,
	"/users":    cmdUsers,
}

var labelCommands = map[string]command{
	strings.ToLower(LabelList):     cmdList,
	strings.ToLower(LabelDownload): cmdDownload,
	strings.ToLower(LabelClear):    cmdClear,
	strings.ToLower(LabelDelete):   cmdDelete,
	strings.ToLower(LabelArchive):  cmdArchive,
	strings.ToLower(LabelGrant):    cmdGrant,
	"list":                         cmdList,
	"download":                     cmdDownload,
	"clear file":                   cmdClear,
	"delete row":                   cmdDelete,
	"archive":                      cmdArchive,
}

// parseCommand recognizes slash commands (with an optional @botname suffix
// and argument) and keyboard labels. Anything else is cmdNone.
func parseCommand(text string) (command, string) {
	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text)
		name := strings.ToLower(fields[0])
		if i := strings.IndexByte(name, '@'); i > 0 {
			name = name[:i]
		}
		if c, ok := slashCommands[name]; ok {
			return c, strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
		}
		return cmdNone, ""
	}
	if c, ok := labelCommands[strings.ToLower(text)]; ok {
		return c, ""
	}
	return cmdNone, ""
}

// KeyboardFor returns the reply keyboard rows shown to a user; none for
// users without access.
func (d *Dispatcher) KeyboardFor(userID int64) [][]string {
	if !d.auth.IsAuthorized(userID) {
		return nil
	}
	rows := [][]string{
		{LabelList},
		{LabelDownload, LabelClear},
		{LabelDelete, LabelArchive},
	}
	if d.auth.IsSuperuser(userID) {
		rows = append(rows, []string{LabelGrant})
	}
	return rows
}

package bot

// CommandType различает команды, которые виджет строит по нажатой кнопке.
// Команда - структурированное значение, а не строка "type:param":
// параметры приходят типизированными полями.
type CommandType string

const (
	CmdReportProblem     CommandType = "report_problem"
	CmdConsultPolicies   CommandType = "consult_policies"
	CmdSelectCategory    CommandType = "category"
	CmdSelectSubcategory CommandType = "subcategory"
	CmdSolved            CommandType = "solved"
	CmdEscalate          CommandType = "escalate"
	CmdFinalOptionSolved CommandType = "final_option_solved"
	CmdFinalOptionFailed CommandType = "final_option_failed"
	CmdSetPreference     CommandType = "set_preference"
	CmdSelectPolicy      CommandType = "policy"
	CmdMainMenu          CommandType = "main_menu"
	CmdGoToAdmin         CommandType = "go_to_admin"
)

// Command - команда от виджета. Значение команды осмысленно только в том
// состоянии, в котором была отрисована породившая её кнопка.
type Command struct {
	Type  CommandType `json:"type"`
	Key   string      `json:"key,omitempty"`   // ключ категории/подкатегории/политики
	Index int         `json:"index,omitempty"` // номер запасного варианта
	Admin string      `json:"admin,omitempty"` // предпочитаемый техник, пусто = автоназначение
	Label string      `json:"label,omitempty"` // текст кнопки для эха в чате
}

// Отправители сообщений чата
const (
	SenderBot  = "bot"
	SenderUser = "user"
)

// Виды всплывающих подсказок
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastWarning = "warning"
)

// Button - кнопка под сообщением бота
type Button struct {
	Text    string  `json:"text"`
	Command Command `json:"command"`
}

// Message - одно сообщение чата
type Message struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
	Sender  string   `json:"sender"`
}

// Renderer - интерфейс вывода: движок не знает, как рисуется чат
type Renderer interface {
	// Send добавляет сообщение в чат
	Send(msg Message)
	// ShowTyping показывает индикатор набора текста
	ShowTyping()
	// SetAttachControl показывает или прячет кнопку прикрепления файлов
	SetAttachControl(visible bool)
	// Toast показывает временное уведомление
	Toast(message, kind string)
}

func mainMenuButton() Button {
	return Button{Text: "🔙 Volver al Menú", Command: Command{Type: CmdMainMenu}}
}

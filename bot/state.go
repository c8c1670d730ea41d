package bot

import "time"

// State - текущее состояние диалога. Активно ровно одно значение,
// истории состояний нет.
type State int

const (
	StateSelectingAction State = iota
	StateSelectingCategory
	StateSelectingSubcategory
	StateConfirmingEscalation
	StateAskingFinalOptions
	StateSelectingPreference
	StateSelectingPolicy
	StateDescribingIssue
)

var stateNames = map[State]string{
	StateSelectingAction:      "SELECTING_ACTION",
	StateSelectingCategory:    "SELECTING_CATEGORY",
	StateSelectingSubcategory: "SELECTING_SUBCATEGORY",
	StateConfirmingEscalation: "CONFIRMING_ESCALATION",
	StateAskingFinalOptions:   "ASKING_FINAL_OPTIONS",
	StateSelectingPreference:  "SELECTING_PREFERENCE",
	StateSelectingPolicy:      "SELECTING_POLICY",
	StateDescribingIssue:      "DESCRIBING_ISSUE",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Delays - искусственные паузы интерфейса. Это презентационные константы,
// а не протокольные требования: в тестах обнуляются.
type Delays struct {
	PreResponse  time.Duration // перед ответом на нажатие кнопки
	TextResponse time.Duration // перед ответом на свободный текст
	InfoReturn   time.Duration // после политики или решённого случая
	TicketReturn time.Duration // после сводки созданного тикета
}

// DefaultDelays возвращает паузы, совпадающие с оригинальным виджетом
func DefaultDelays() Delays {
	return Delays{
		PreResponse:  800 * time.Millisecond,
		TextResponse: time.Second,
		InfoReturn:   2 * time.Second,
		TicketReturn: 6 * time.Second,
	}
}

// sessionContext - контекст, накопленный за сессию. Полностью сбрасывается
// при каждом возврате в главное меню, не только текущее состояние.
type sessionContext struct {
	categoryKey        string
	subcategoryKey     string
	finalOptionIndex   int
	finalOptionsTried  []string
	problemDescription string
	attachedFiles      []Attachment
}

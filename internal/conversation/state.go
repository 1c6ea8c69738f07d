package conversation

// State is a node of the conversation state machine
type State int

const (
	StateEnd State = iota
	StateMenu
	StateAwaitChannelForAnalysis
	StateAwaitChannelForPlan
	StateAwaitPostID
	StateAwaitChannelForSurvey
	StateAwaitConfirmation
)

func (s State) String() string {
	switch s {
	case StateEnd:
		return "END"
	case StateMenu:
		return "MENU"
	case StateAwaitChannelForAnalysis:
		return "AWAIT_CHANNEL_FOR_ANALYSIS"
	case StateAwaitChannelForPlan:
		return "AWAIT_CHANNEL_FOR_PLAN"
	case StateAwaitPostID:
		return "AWAIT_POST_ID"
	case StateAwaitChannelForSurvey:
		return "AWAIT_CHANNEL_FOR_SURVEY"
	case StateAwaitConfirmation:
		return "AWAIT_CONFIRMATION"
	default:
		return "UNKNOWN"
	}
}

// Task is the analysis waiting for confirmation
type Task int

const (
	TaskNone Task = iota
	TaskAnalyzeChannel
	TaskContentPlan
	TaskAnalyzePost
	TaskSurvey
)

func (t Task) String() string {
	switch t {
	case TaskAnalyzeChannel:
		return "analyze_channel"
	case TaskContentPlan:
		return "generate_content_plan"
	case TaskAnalyzePost:
		return "analyze_post"
	case TaskSurvey:
		return "create_survey"
	default:
		return "none"
	}
}

// Session is the context of one conversation. The zero value is a
// conversation that has ended.
type Session struct {
	State   State
	Pending Task
	Channel string // normalized handle, set for channel tasks
	PostID  int64  // set for TaskAnalyzePost
}

// Reply is what the operator gets back for one message
type Reply struct {
	Text           string
	Keyboard       [][]string // reply keyboard to show, nil keeps the current one
	RemoveKeyboard bool
}

// Menu and confirmation labels
const (
	LabelAnalyzeChannel = "Анализ канала"
	LabelContentPlan    = "Генерация контент-плана"
	LabelAnalyzePost    = "Анализ поста"
	LabelSurvey         = "Создать опрос"

	LabelYes = "Да"
	LabelNo  = "Нет"
)

var (
	menuKeyboard = [][]string{
		{LabelAnalyzeChannel},
		{LabelContentPlan},
		{LabelAnalyzePost},
		{LabelSurvey},
	}
	confirmKeyboard = [][]string{{LabelYes, LabelNo}}
)

const (
	msgGreeting = "Привет! Я бот для аналитики Telegram-каналов.\n\n" +
		"Я могу помочь анализировать контент, генерировать идеи для постов " +
		"и создавать опросы для вашей аудитории.\n\n" +
		"Введите /menu, чтобы увидеть доступные команды."

	msgHelp = "Доступные команды:\n\n" +
		"/start - Начать работу с ботом\n" +
		"/menu - Открыть меню с функциями\n" +
		"/help - Показать это сообщение\n" +
		"/cancel - Отменить текущую операцию\n\n" +
		"Через меню вы можете:\n" +
		"- Анализировать контент канала\n" +
		"- Генерировать контент-план\n" +
		"- Анализировать отдельные посты\n" +
		"- Создавать опросы для аудитории\n"

	msgMenu           = "Выберите действие:"
	msgUnknownCommand = "Извините, я не знаю такой команды. Используйте /help, чтобы увидеть список доступных команд."
	msgIdle           = "Введите /menu, чтобы увидеть доступные команды."

	msgAskChannelAnalysis = "Пожалуйста, введите username канала для анализа (например, @channel_name):"
	msgAskChannelPlan     = "Пожалуйста, введите username канала для генерации контент-плана (например, @channel_name):"
	msgAskPostID          = "Пожалуйста, введите ID поста для анализа (например, 123):"
	msgAskChannelSurvey   = "Пожалуйста, введите username канала для создания опроса (например, @channel_name):"
	msgBadHandle          = "Пустое имя канала. Пожалуйста, введите username канала (например, @channel_name):"
	msgBadPostID          = "Неверный формат ID поста. Пожалуйста, введите число."

	msgConfirmAnalysis = "Вы хотите проанализировать канал @%s?"
	msgConfirmPlan     = "Вы хотите сгенерировать контент-план для канала @%s?"
	msgConfirmPost     = "Вы хотите проанализировать пост с ID %d?"
	msgConfirmSurvey   = "Вы хотите создать опрос для аудитории канала @%s?"
	msgConfirmAgain    = "Пожалуйста, ответьте «Да» или «Нет»."

	msgDeclined      = "Действие отменено."
	msgCancelled     = "Операция отменена."
	msgAborted       = "Задача прервана."
	msgNoPending     = "Произошла ошибка. Пожалуйста, начните заново."
	msgDone          = "Задача выполнена успешно!\n\n"
	msgFailed        = "Произошла ошибка: %s\n\nПожалуйста, попробуйте еще раз или свяжитесь с администратором."
	msgSeeFullResult = "Полные результаты доступны в веб-интерфейсе."
)

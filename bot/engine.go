// Package bot реализует диалоговый движок виджета поддержки: конечный
// автомат, который ведёт пользователя по дереву самодиагностики и при
// неудаче создаёт тикет во внешнем бэкенде.
package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/egor/soportebot/kb"
	"github.com/egor/soportebot/models"
)

// Backend - срез операций внешнего API, нужных движку.
// Реализуется *backend.Client; в тестах подменяется.
type Backend interface {
	LogInteraction(ctx context.Context, entry models.InteractionLog) error
	LogSolved(ctx context.Context, entry models.SolvedLog) error
	CreateTicket(ctx context.Context, req models.CreateTicketRequest) (*models.TicketCreated, error)
	UploadTicketFile(ctx context.Context, ticketID, filename string, file io.Reader, username string) error
	GetAdmins(ctx context.Context) ([]models.AdminInfo, error)
}

// Engine - диалоговый движок одной сессии виджета. Команды одной сессии
// обрабатываются строго по одной: мьютекс сериализует Dispatch/SubmitText
// с конкурентной загрузкой файлов по HTTP.
type Engine struct {
	mu        sync.Mutex
	base      *kb.KnowledgeBase
	api       Backend
	render    Renderer
	user      models.User
	sessionID string
	delays    Delays

	state State
	sctx  sessionContext

	// последняя реплика бота; уходит в журнал взаимодействий
	lastBotMu sync.Mutex
	lastBot   string
}

// NewEngine создаёт движок для новой сессии
func NewEngine(base *kb.KnowledgeBase, api Backend, render Renderer, user models.User, sessionID string, delays Delays) *Engine {
	return &Engine{
		base:      base,
		api:       api,
		render:    render,
		user:      user,
		sessionID: sessionID,
		delays:    delays,
		state:     StateSelectingAction,
	}
}

// State возвращает текущее состояние диалога
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start приветствует пользователя и показывает главное меню
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.say(Message{
		Text:   fmt.Sprintf("¡Hola, %s! 👋 Soy tu asistente virtual de TI. ¿Cómo puedo ayudarte hoy?", e.user.Username),
		Sender: SenderBot,
	})
	e.mainMenu()
}

// Dispatch обрабатывает команду от нажатой кнопки: эхо выбора, журнал
// взаимодействия (ошибки глотаются), индикатор набора, пауза и переход,
// выбранный по текущему состоянию.
func (e *Engine) Dispatch(ctx context.Context, cmd Command) {
	if cmd.Label != "" {
		e.say(Message{Text: cmd.Label, Sender: SenderUser})
	}
	e.logInteraction("click_boton", string(cmd.Type))
	e.render.ShowTyping()
	if !sleep(ctx, e.delays.PreResponse) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// возврат в главное меню доступен из любого состояния
	if cmd.Type == CmdMainMenu {
		e.mainMenu()
		return
	}

	switch e.state {
	case StateSelectingAction:
		e.handleMainMenuSelection(cmd)
	case StateSelectingCategory:
		e.handleCategorySelection(cmd)
	case StateSelectingSubcategory:
		e.handleSubcategorySelection(cmd)
	case StateConfirmingEscalation:
		e.handleEscalationConfirmation(ctx, cmd)
	case StateAskingFinalOptions:
		e.handleFinalOption(ctx, cmd)
	case StateSelectingPreference:
		if cmd.Type == CmdSetPreference {
			e.createTicket(ctx, cmd.Admin)
		}
	case StateSelectingPolicy:
		e.handlePolicySelection(ctx, cmd)
	default:
		log.Printf("[bot] команда %s проигнорирована в состоянии %s", cmd.Type, e.state)
	}
}

// SubmitText обрабатывает свободный текст. Осмыслен только в состоянии
// DESCRIBING_ISSUE; в остальных бот отвечает, что не понял.
func (e *Engine) SubmitText(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	e.say(Message{Text: text, Sender: SenderUser})
	e.logInteraction("envio_texto", text)
	e.render.ShowTyping()
	if !sleep(ctx, e.delays.TextResponse) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateDescribingIssue {
		e.say(Message{Text: "No he entendido. Por favor, usa los botones.", Sender: SenderBot})
		return
	}

	e.sctx.problemDescription = text
	e.render.SetAttachControl(false)
	e.askAdminPreference(ctx)
}

// Close освобождает ресурсы сессии (удаляет временные файлы вложений)
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanupAttachments()
	e.sctx.attachedFiles = nil
}

// ─────────────────────────────── переходы

// mainMenu полностью сбрасывает контекст сессии и показывает главное меню.
// Вызывается с удержанным мьютексом.
func (e *Engine) mainMenu() {
	e.cleanupAttachments()
	e.state = StateSelectingAction
	e.sctx = sessionContext{}
	e.render.SetAttachControl(false)

	buttons := []Button{
		{Text: "🛎️ Reportar un Problema", Command: Command{Type: CmdReportProblem}},
		{Text: "📋 Consultar Políticas", Command: Command{Type: CmdConsultPolicies}},
	}
	if e.user.IsAdmin() {
		buttons = append(buttons, Button{Text: "⚙️ Panel de Administración", Command: Command{Type: CmdGoToAdmin}})
	}
	e.say(Message{Text: "¿Qué necesitas hacer?", Buttons: buttons, Sender: SenderBot})
}

func (e *Engine) handleMainMenuSelection(cmd Command) {
	switch cmd.Type {
	case CmdReportProblem:
		e.showCategories()
	case CmdConsultPolicies:
		e.state = StateSelectingPolicy
		var buttons []Button
		for _, key := range e.base.Politicas.Keys() {
			pol, _ := e.base.Politicas.Get(key)
			buttons = append(buttons, Button{Text: pol.Titulo, Command: Command{Type: CmdSelectPolicy, Key: key}})
		}
		buttons = append(buttons, mainMenuButton())
		e.say(Message{Text: "Claro, aquí están las políticas. ¿Cuál deseas consultar?", Buttons: buttons, Sender: SenderBot})
	case CmdGoToAdmin:
		// навигацию выполняет сам виджет, бот лишь подтверждает
		e.say(Message{Text: "Abriendo el Panel de Administración…", Sender: SenderBot})
	default:
		log.Printf("[bot] неизвестный выбор в главном меню: %s", cmd.Type)
	}
}

func (e *Engine) showCategories() {
	e.state = StateSelectingCategory
	var buttons []Button
	for _, key := range e.base.CasosSoporte.Keys() {
		cat, _ := e.base.CasosSoporte.Get(key)
		buttons = append(buttons, Button{Text: cat.Titulo, Command: Command{Type: CmdSelectCategory, Key: key}})
	}
	buttons = append(buttons, mainMenuButton())
	e.say(Message{Text: "Entendido. ¿Qué tipo de problema tienes?", Buttons: buttons, Sender: SenderBot})
}

func (e *Engine) handleCategorySelection(cmd Command) {
	if cmd.Type != CmdSelectCategory {
		return
	}
	cat, ok := e.base.CasosSoporte.Get(cmd.Key)
	if !ok {
		log.Printf("[bot] неизвестная категория: %q", cmd.Key)
		e.render.Toast("Opción no disponible", ToastWarning)
		return
	}

	e.sctx.categoryKey = cmd.Key
	e.state = StateSelectingSubcategory

	var buttons []Button
	for _, key := range cat.Categorias.Keys() {
		sub, _ := cat.Categorias.Get(key)
		buttons = append(buttons, Button{Text: sub.Titulo, Command: Command{Type: CmdSelectSubcategory, Key: key}})
	}
	buttons = append(buttons, Button{Text: "🔙 Volver a Categorías", Command: Command{Type: CmdReportProblem}})
	e.say(Message{Text: "Ok. Ahora, sé más específico:", Buttons: buttons, Sender: SenderBot})
}

func (e *Engine) handleSubcategorySelection(cmd Command) {
	if cmd.Type == CmdReportProblem {
		e.showCategories()
		return
	}
	if cmd.Type != CmdSelectSubcategory {
		return
	}
	sub, ok := e.base.Subcategory(e.sctx.categoryKey, cmd.Key)
	if !ok {
		log.Printf("[bot] неизвестная подкатегория: %q/%q", e.sctx.categoryKey, cmd.Key)
		e.render.Toast("Opción no disponible", ToastWarning)
		return
	}

	e.sctx.subcategoryKey = cmd.Key
	e.state = StateConfirmingEscalation

	text := fmt.Sprintf("Ok, para \"%s\", intenta estos pasos:\n\n%s\n\n--------------------\n%s",
		sub.Titulo, strings.Join(sub.Pasos, "\n"), sub.TituloConfirmacion)
	e.say(Message{
		Text: text,
		Buttons: []Button{
			{Text: "✅ Sí, se solucionó", Command: Command{Type: CmdSolved}},
			{Text: "❌ No, necesito ayuda", Command: Command{Type: CmdEscalate}},
		},
		Sender: SenderBot,
	})
}

func (e *Engine) handleEscalationConfirmation(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CmdSolved:
		e.logSolvedCase(ctx)
	case CmdEscalate:
		sub, ok := e.base.Subcategory(e.sctx.categoryKey, e.sctx.subcategoryKey)
		if ok && len(sub.OpcionesFinales) > 0 {
			e.state = StateAskingFinalOptions
			e.sctx.finalOptionIndex = 0
			e.sctx.finalOptionsTried = nil
			e.askFinalOption(sub, 0)
			return
		}
		e.startDescription(false)
	}
}

// logSolvedCase регистрирует решённый без эскалации случай и возвращает
// пользователя в главное меню
func (e *Engine) logSolvedCase(ctx context.Context) {
	e.say(Message{Text: "¡Excelente! Me alegra haberte ayudado. 👍 Registrando esto...", Sender: SenderBot})
	entry := models.SolvedLog{Context: e.ticketContext(), User: e.user}
	if err := e.api.LogSolved(ctx, entry); err != nil {
		log.Printf("[bot] не удалось зарегистрировать решённый случай: %v", err)
	}
	if sleep(ctx, e.delays.InfoReturn) {
		e.mainMenu()
	}
}

// askFinalOption предлагает запасные варианты по одному; когда они
// закончились, переходит к свободному описанию проблемы.
func (e *Engine) askFinalOption(sub *kb.Subcategory, index int) {
	if index >= len(sub.OpcionesFinales) {
		e.startDescription(true)
		return
	}
	option := sub.OpcionesFinales[index]
	e.say(Message{
		Text: fmt.Sprintf("Ok, una última cosa:\n\n%s\n%s", option.Titulo, option.Descripcion),
		Buttons: []Button{
			{Text: "✅ Sí, esto lo solucionó", Command: Command{Type: CmdFinalOptionSolved, Index: index}},
			{Text: "❌ No, el problema persiste", Command: Command{Type: CmdFinalOptionFailed, Index: index}},
		},
		Sender: SenderBot,
	})
}

func (e *Engine) handleFinalOption(ctx context.Context, cmd Command) {
	sub, ok := e.base.Subcategory(e.sctx.categoryKey, e.sctx.subcategoryKey)
	if !ok {
		e.mainMenu()
		return
	}
	switch cmd.Type {
	case CmdFinalOptionSolved:
		e.logSolvedCase(ctx)
	case CmdFinalOptionFailed:
		// индекс хранится в контексте; команда лишь подтверждает текущий шаг
		idx := e.sctx.finalOptionIndex
		if idx < len(sub.OpcionesFinales) {
			e.sctx.finalOptionsTried = append(e.sctx.finalOptionsTried, sub.OpcionesFinales[idx].Titulo)
		}
		e.sctx.finalOptionIndex = idx + 1
		e.askFinalOption(sub, e.sctx.finalOptionIndex)
	}
}

// startDescription переводит диалог в режим свободного описания проблемы
// и открывает кнопку прикрепления файлов
func (e *Engine) startDescription(afterOptions bool) {
	e.state = StateDescribingIssue
	text := "📝 Describe tu problema detalladamente\n\n" +
		"Puedes incluir:\n" +
		"• Descripción escrita del problema\n" +
		"• Capturas de pantalla (usa Ctrl+V para pegarlas)\n" +
		"• Documentos relacionados\n" +
		"• Cualquier archivo que ayude a entender el problema\n\n" +
		"Cuando termines, presiona Enviar."
	if afterOptions {
		text = "Gracias por confirmar. Ahora sí, por favor, describe tu problema."
	}
	e.say(Message{Text: text, Sender: SenderBot})
	e.render.SetAttachControl(true)
}

func (e *Engine) handlePolicySelection(ctx context.Context, cmd Command) {
	if cmd.Type != CmdSelectPolicy {
		return
	}
	pol, ok := e.base.Politicas.Get(cmd.Key)
	if !ok {
		log.Printf("[bot] неизвестная политика: %q", cmd.Key)
		e.render.Toast("Opción no disponible", ToastWarning)
		return
	}
	e.say(Message{Text: fmt.Sprintf("%s\n\n%s", pol.Titulo, pol.Contenido), Sender: SenderBot})
	if sleep(ctx, e.delays.InfoReturn) {
		e.mainMenu()
	}
}

// askAdminPreference запрашивает список техников. Если список недоступен
// или пуст, тикет создаётся сразу с автоназначением - пользователь не
// блокируется.
func (e *Engine) askAdminPreference(ctx context.Context) {
	e.state = StateSelectingPreference

	admins, err := e.api.GetAdmins(ctx)
	if err != nil {
		log.Printf("[bot] не удалось загрузить список техников: %v", err)
		e.say(Message{Text: "⚠️ No se pudieron cargar los técnicos. Creando ticket con asignación automática...", Sender: SenderBot})
		e.createTicket(ctx, "")
		return
	}
	if len(admins) == 0 {
		e.say(Message{Text: "ℹ️ No hay técnicos disponibles en este momento. Creando ticket con asignación automática...", Sender: SenderBot})
		e.createTicket(ctx, "")
		return
	}

	var buttons []Button
	for _, admin := range admins {
		buttons = append(buttons, Button{
			Text:    "👤 " + admin.Username,
			Command: Command{Type: CmdSetPreference, Admin: admin.Username},
		})
	}
	buttons = append(buttons, Button{Text: "🎲 Asignación Automática", Command: Command{Type: CmdSetPreference}})

	e.say(Message{
		Text:    "👥 Selecciona un técnico para tu ticket\n\nPuedes elegir a quien prefieres que revise tu problema, o seleccionar asignación automática.",
		Buttons: buttons,
		Sender:  SenderBot,
	})
}

// createTicket - двухфазное создание тикета: сначала POST /tickets, затем
// последовательная загрузка вложений. Провал первой фазы прерывает всё;
// провалы отдельных загрузок попадают в сводку, но тикет не откатывается.
func (e *Engine) createTicket(ctx context.Context, preferredAdmin string) {
	e.render.ShowTyping()

	req := models.CreateTicketRequest{
		Context:        e.ticketContext(),
		User:           e.user,
		PreferredAdmin: preferredAdmin,
	}
	created, err := e.api.CreateTicket(ctx, req)
	if err != nil {
		log.Printf("[bot] ошибка создания тикета: %v", err)
		e.say(Message{
			Text:    "❌ Error al crear el ticket: " + err.Error(),
			Buttons: []Button{mainMenuButton()},
			Sender:  SenderBot,
		})
		return
	}

	results := e.uploadAttachments(ctx, created.TicketID)
	e.showFinalResult(created, results, preferredAdmin)

	e.cleanupAttachments()
	e.sctx.attachedFiles = nil
	e.render.SetAttachControl(false)

	if sleep(ctx, e.delays.TicketReturn) {
		e.mainMenu()
	}
}

func (e *Engine) showFinalResult(created *models.TicketCreated, results []models.UploadResult, preferredAdmin string) {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ ¡Ticket %s creado exitosamente!", created.TicketID)

	if created.AssignedTo != "" {
		fmt.Fprintf(&b, "\n👤 Asignado a: %s", created.AssignedTo)
		if preferredAdmin != "" && created.AssignedTo == preferredAdmin {
			b.WriteString(" (tu preferencia)")
		}
	}

	if len(results) > 0 {
		ok, failed := 0, 0
		for _, r := range results {
			if r.Success {
				ok++
			} else {
				failed++
			}
		}
		b.WriteString("\n\n📎 Archivos adjuntos:")
		fmt.Fprintf(&b, "\n✅ %d subido(s) correctamente", ok)
		if failed > 0 {
			fmt.Fprintf(&b, "\n❌ %d fallaron", failed)
			for _, r := range results {
				if !r.Success {
					fmt.Fprintf(&b, "\n   • %s: %s", r.Filename, r.Error)
				}
			}
		}
	}

	fmt.Fprintf(&b, "\n\n📋 Descripción del problema:\n%s", e.sctx.problemDescription)
	e.say(Message{Text: b.String(), Sender: SenderBot})
}

// ─────────────────────────────── утилиты

func (e *Engine) ticketContext() models.TicketContext {
	return models.TicketContext{
		CategoryKey:        e.sctx.categoryKey,
		SubcategoryKey:     e.sctx.subcategoryKey,
		ProblemDescription: e.sctx.problemDescription,
		FinalOptionsTried:  e.sctx.finalOptionsTried,
	}
}

// say отправляет сообщение виджету и запоминает текст последней
// реплики бота: он уходит в журнал вместе с ответным действием
func (e *Engine) say(msg Message) {
	if msg.Sender == SenderBot {
		e.lastBotMu.Lock()
		e.lastBot = msg.Text
		e.lastBotMu.Unlock()
	}
	e.render.Send(msg)
}

// logInteraction пишет действие в журнал бэкенда, не блокируя диалог.
// Ошибки только логируются.
func (e *Engine) logInteraction(actionType, actionValue string) {
	e.lastBotMu.Lock()
	botResponse := e.lastBot
	e.lastBotMu.Unlock()

	entry := models.InteractionLog{
		SessionID:   e.sessionID,
		Username:    e.user.Username,
		ActionType:  actionType,
		ActionValue: actionValue,
		BotResponse: botResponse,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.api.LogInteraction(ctx, entry); err != nil {
			log.Printf("[bot] не удалось записать взаимодействие: %v", err)
		}
	}()
}

// sleep ждёт d или отмену контекста; возвращает false при отмене
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

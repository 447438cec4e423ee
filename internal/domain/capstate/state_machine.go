// Пакет capstate — конечный автомат жизненного цикла захвата.
//
// Состояния:
//   - idle — нет активного потока
//   - starting — поток открывается
//   - active — поток открыт, можно делать снимки
//   - fallback — устройства недоступны, ручная загрузка файлов
//
// Переходы — чистая функция (состояние, событие) → новое состояние;
// из fallback всегда можно повторить запуск. Потокобезопасен через
// sync.RWMutex.
package capstate

import (
	"fmt"
	"sync"
	"time"
)

// State — состояние жизненного цикла захвата.
type State string

const (
	// StateIdle — поток не открыт
	StateIdle State = "idle"
	// StateStarting — идёт открытие потока
	StateStarting State = "starting"
	// StateActive — поток открыт
	StateActive State = "active"
	// StateFallback — режим ручной загрузки файлов
	StateFallback State = "fallback"
)

// Event — событие жизненного цикла захвата.
type Event string

const (
	// EventStart — запрошен запуск потока (в том числе смена устройства)
	EventStart Event = "start"
	// EventStarted — поток успешно открыт
	EventStarted Event = "started"
	// EventStartFailed — открытие потока не удалось
	EventStartFailed Event = "start_failed"
	// EventStop — запрошена остановка потока
	EventStop Event = "stop"
	// EventDeviceLost — активное устройство пропало
	EventDeviceLost Event = "device_lost"
	// EventAcquireFailed — ошибка захвата, переход в fallback
	EventAcquireFailed Event = "acquire_failed"
)

// TransitionRecord — запись о переходе между состояниями.
type TransitionRecord struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Event     Event     `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// validTransitions — матрица допустимых переходов.
// Ключ — текущее состояние, значение — целевое состояние по событию.
var validTransitions = map[State]map[Event]State{
	StateIdle: {
		EventStart:         StateStarting,
		EventAcquireFailed: StateFallback,
	},
	StateStarting: {
		EventStarted:       StateActive,
		EventStartFailed:   StateFallback,
		EventStop:          StateIdle,
		EventAcquireFailed: StateFallback,
	},
	StateActive: {
		// Смена устройства: новый запуск останавливает старый поток
		EventStart:         StateStarting,
		EventStop:          StateIdle,
		EventDeviceLost:    StateIdle,
		EventAcquireFailed: StateFallback,
	},
	StateFallback: {
		// Из fallback запуск можно повторить
		EventStart:         StateStarting,
		EventAcquireFailed: StateFallback,
	},
}

// Transition — чистая функция перехода.
// Возвращает новое состояние или ошибку, если событие недопустимо
// в текущем состоянии.
func Transition(current State, ev Event) (State, error) {
	events, ok := validTransitions[current]
	if !ok {
		return "", &TransitionError{
			Code:    "INVALID_STATE",
			Message: fmt.Sprintf("неизвестное состояние: %q", current),
		}
	}
	next, ok := events[ev]
	if !ok {
		return "", &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("событие %s недопустимо в состоянии %s", ev, current),
		}
	}
	return next, nil
}

// StateMachine — конечный автомат с текущим состоянием и историей переходов.
// Потокобезопасен для одновременного чтения/записи.
type StateMachine struct {
	mu      sync.RWMutex
	current State
	history []TransitionRecord
}

// NewStateMachine создаёт автомат в состоянии idle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		history: make([]TransitionRecord, 0),
	}
}

// Current возвращает текущее состояние.
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Can проверяет, допустимо ли событие в текущем состоянии.
func (sm *StateMachine) Can(ev Event) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, err := Transition(sm.current, ev)
	return err == nil
}

// Fire выполняет переход по событию и записывает его в историю.
func (sm *StateMachine) Fire(ev Event) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	next, err := Transition(sm.current, ev)
	if err != nil {
		return err
	}

	sm.history = append(sm.history, TransitionRecord{
		From:      sm.current,
		To:        next,
		Event:     ev,
		Timestamp: time.Now().UTC(),
	})
	sm.current = next
	return nil
}

// History возвращает историю переходов (копия).
func (sm *StateMachine) History() []TransitionRecord {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	result := make([]TransitionRecord, len(sm.history))
	copy(result, sm.history)
	return result
}

// TransitionError — ошибка недопустимого перехода.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION, INVALID_STATE)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

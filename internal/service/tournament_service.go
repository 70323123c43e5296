package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/integral-arena-api/internal/config"
	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	"github.com/yourusername/integral-arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/integral-arena-api/internal/pkg/errors"
	"github.com/yourusername/integral-arena-api/internal/service/mathjudge"
)

// TournamentService управляет турнирами двух форматов: круговой зачет
// (каждый играет с каждым, очки копятся в таблице) и олимпийская сетка
// (проигравший выбывает, при нечетном числе игроков — bye).
// Матчи переиспользуют дуэльную дисциплину ответов: маркер «место уже
// отвечало», судья, условная запись результата.
type TournamentService struct {
	tournamentRepo repository.TournamentRepository
	problemRepo    repository.ProblemRepository
	cacheRepo      repository.CacheRepository
	judge          mathjudge.Judge
	cfg            *config.GameConfig
}

// NewTournamentService создает новый сервис турниров
func NewTournamentService(
	tournamentRepo repository.TournamentRepository,
	problemRepo repository.ProblemRepository,
	cacheRepo repository.CacheRepository,
	judge mathjudge.Judge,
	cfg *config.GameConfig,
) *TournamentService {
	return &TournamentService{
		tournamentRepo: tournamentRepo,
		problemRepo:    problemRepo,
		cacheRepo:      cacheRepo,
		judge:          judge,
		cfg:            cfg,
	}
}

// matchAnsweredKey — маркер «игрок уже отвечал на вопрос questionSeq матча»
func matchAnsweredKey(matchUID string, questionSeq int, userID string) string {
	return fmt.Sprintf("tmatch:%s:q%d:answered:%s", matchUID, questionSeq, userID)
}

// CreateTournament создает турнирную комнату и сразу сажает хоста в ростер
func (s *TournamentService) CreateTournament(hostID string, format string, maxPlayers int, difficulty string, questionsPerMatch int, timePerQuestionSec int) (*entity.TournamentRoom, error) {
	if format != entity.TournamentFormatRoundRobin && format != entity.TournamentFormatKnockout {
		return nil, fmt.Errorf("%w: unknown tournament format %q", apperrors.ErrValidation, format)
	}
	if !entity.IsValidDifficulty(difficulty) {
		return nil, fmt.Errorf("%w: unknown difficulty %q", apperrors.ErrValidation, difficulty)
	}
	if questionsPerMatch < 1 {
		questionsPerMatch = 3
	}
	if timePerQuestionSec < 10 {
		timePerQuestionSec = 60
	}

	for attempt := 0; attempt < s.cfg.CodeAttempts; attempt++ {
		room := &entity.TournamentRoom{
			Code:               generateRoomCode(),
			HostID:             hostID,
			Status:             entity.RoomStatusWaiting,
			Format:             format,
			MaxPlayers:         entity.ClampMaxPlayers(maxPlayers),
			Difficulty:         difficulty,
			QuestionsPerMatch:  questionsPerMatch,
			TimePerQuestionSec: timePerQuestionSec,
		}

		err := s.tournamentRepo.Create(room)
		if err == nil {
			if _, jerr := s.tournamentRepo.AddParticipant(room.Code, hostID); jerr != nil {
				return nil, jerr
			}
			log.Printf("[Tournament] Турнир %s (%s) создан пользователем %s", room.Code, format, hostID)
			return s.tournamentRepo.GetByCode(room.Code)
		}
		if errors.Is(err, repository.ErrCodeTaken) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: unable to allocate a unique room code after %d attempts",
		apperrors.ErrCapacityExhausted, s.cfg.CodeAttempts)
}

// GetTournament возвращает турнир с ростером
func (s *TournamentService) GetTournament(code string) (*entity.TournamentRoom, error) {
	return s.tournamentRepo.GetByCode(code)
}

// JoinTournament добавляет пользователя в ростер набирающего турнира
func (s *TournamentService) JoinTournament(code string, userID string) (*entity.TournamentRoom, error) {
	_, err := s.tournamentRepo.AddParticipant(code, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, fmt.Errorf("%w: tournament has already started or finished", apperrors.ErrConflict)
		case errors.Is(err, repository.ErrAlreadyJoined):
			return nil, fmt.Errorf("%w: already joined this tournament", apperrors.ErrConflict)
		default:
			return nil, err
		}
	}
	log.Printf("[Tournament] Пользователь %s вошел в турнир %s", userID, code)
	return s.tournamentRepo.GetByCode(code)
}

// StartTournament запускает турнир: переход WAITING→IN_PROGRESS и генерация
// расписания матчей. Только хост может стартовать; нужно минимум два участника.
func (s *TournamentService) StartTournament(code string, userID string) (*entity.TournamentRoom, []entity.TournamentMatch, error) {
	room, err := s.tournamentRepo.GetByCode(code)
	if err != nil {
		return nil, nil, err
	}
	if room.HostID != userID {
		return nil, nil, fmt.Errorf("%w: only the host can start the tournament", apperrors.ErrForbidden)
	}
	if len(room.Participants) < entity.MinTournamentPlayers {
		return nil, nil, fmt.Errorf("%w: at least %d participants required", apperrors.ErrValidation, entity.MinTournamentPlayers)
	}

	// Смена статуса и вставка расписания идут одной транзакцией: сбой
	// вставки откатывает и старт, турнир остается WAITING
	updated, matches, err := s.tournamentRepo.StartWithMatches(code, func(r *entity.TournamentRoom) ([]entity.TournamentMatch, error) {
		if len(r.Participants) < entity.MinTournamentPlayers {
			return nil, fmt.Errorf("%w: at least %d participants required", apperrors.ErrValidation, entity.MinTournamentPlayers)
		}

		now := time.Now()
		r.Status = entity.RoomStatusInProgress
		r.StartedAt = &now

		roster := make([]string, 0, len(r.Participants))
		for _, p := range r.Participants {
			roster = append(roster, p.UserID)
		}
		if r.Format == entity.TournamentFormatRoundRobin {
			return buildRoundRobinMatches(r.ID, roster), nil
		}
		return buildKnockoutRound(r.ID, 1, roster), nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, nil, fmt.Errorf("%w: tournament has already started or finished", apperrors.ErrConflict)
		}
		return nil, nil, err
	}

	log.Printf("[Tournament] Турнир %s запущен: %d участников, %d матчей",
		code, len(updated.Participants), len(matches))
	return updated, matches, nil
}

// buildRoundRobinMatches строит круговое расписание методом круга:
// первый игрок фиксирован, остальные вращаются. Каждая пара встречается
// ровно один раз, в одном круге игрок занят не больше чем в одном матче.
// При нечетном ростере добавляется фиктивный участник, его соперник
// в этом круге отдыхает.
func buildRoundRobinMatches(roomID uint, roster []string) []entity.TournamentMatch {
	players := make([]string, len(roster))
	copy(players, roster)
	if len(players)%2 == 1 {
		players = append(players, "")
	}
	n := len(players)

	var matches []entity.TournamentMatch
	for round := 1; round < n; round++ {
		for i := 0; i < n/2; i++ {
			p1 := players[i]
			p2 := players[n-1-i]
			if p1 == "" || p2 == "" {
				continue
			}
			p2c := p2
			matches = append(matches, entity.TournamentMatch{
				MatchUID: uuid.NewString(),
				RoomID:   roomID,
				Round:    round,
				Player1:  p1,
				Player2:  &p2c,
				Status:   entity.MatchStatusScheduled,
			})
		}

		last := players[n-1]
		copy(players[2:], players[1:n-1])
		players[1] = last
	}
	return matches
}

// buildKnockoutRound жеребит игроков круга случайно и разбивает на пары.
// Нечетный остаток получает bye: матч создается сразу завершенным с
// техническим победителем.
func buildKnockoutRound(roomID uint, round int, players []string) []entity.TournamentMatch {
	shuffled := make([]string, len(players))
	copy(shuffled, players)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var matches []entity.TournamentMatch
	for i := 0; i+1 < len(shuffled); i += 2 {
		p2 := shuffled[i+1]
		matches = append(matches, entity.TournamentMatch{
			MatchUID: uuid.NewString(),
			RoomID:   roomID,
			Round:    round,
			Player1:  shuffled[i],
			Player2:  &p2,
			Status:   entity.MatchStatusScheduled,
		})
	}
	if len(shuffled)%2 == 1 {
		bye := shuffled[len(shuffled)-1]
		winner := bye
		matches = append(matches, entity.TournamentMatch{
			MatchUID: uuid.NewString(),
			RoomID:   roomID,
			Round:    round,
			Player1:  bye,
			Status:   entity.MatchStatusCompleted,
			WinnerID: &winner,
		})
	}
	return matches
}

// knockoutRounds — глубина сетки для n участников
func knockoutRounds(n int) int {
	return int(math.Ceil(math.Log2(float64(n))))
}

// GetMatches возвращает расписание матчей турнира
func (s *TournamentService) GetMatches(code string) (*entity.TournamentRoom, []entity.TournamentMatch, error) {
	room, err := s.tournamentRepo.GetByCode(code)
	if err != nil {
		return nil, nil, err
	}
	matches, err := s.tournamentRepo.GetMatches(room.ID)
	if err != nil {
		return nil, nil, err
	}
	return room, matches, nil
}

// Standings возвращает турнирную таблицу (очки по убыванию, время по возрастанию)
func (s *TournamentService) Standings(code string) ([]entity.TournamentParticipant, error) {
	room, err := s.tournamentRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	return s.tournamentRepo.Standings(room.ID)
}

// StartMatchQuestion выдает матчу очередной вопрос. Первый вызов переводит
// SCHEDULED матч в IN_PROGRESS. Идемпотентна: открытый вопрос возвращается
// как есть, а не подменяется новым.
func (s *TournamentService) StartMatchQuestion(matchUID string, userID string) (*entity.TournamentMatch, *entity.Problem, error) {
	match, err := s.tournamentRepo.GetMatchByUID(matchUID)
	if err != nil {
		return nil, nil, err
	}
	if !match.HasPlayer(userID) {
		return nil, nil, fmt.Errorf("%w: not a player of match %s", apperrors.ErrForbidden, matchUID)
	}
	if match.IsCompleted() {
		return nil, nil, fmt.Errorf("%w: match already completed", apperrors.ErrConflict)
	}

	room, err := s.tournamentRepo.GetByID(match.RoomID)
	if err != nil {
		return nil, nil, err
	}
	if room.Status != entity.RoomStatusInProgress {
		return nil, nil, fmt.Errorf("%w: tournament is not in progress", apperrors.ErrConflict)
	}

	if match.CurrentProblemID != nil {
		problem, err := s.problemRepo.GetByID(*match.CurrentProblemID)
		if err != nil {
			return nil, nil, err
		}
		return match, problem, nil
	}

	problem, err := s.problemRepo.GetRandomByDifficulty(resolveDifficulty(room.Difficulty))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: problem catalog: %v", apperrors.ErrUpstreamUnavailable, err)
	}

	var existingID *uint
	updated, err := s.tournamentRepo.ApplyMatch(matchUID, func(m *entity.TournamentMatch) error {
		if m.CurrentProblemID != nil {
			existingID = m.CurrentProblemID
			return nil
		}
		now := time.Now()
		m.Status = entity.MatchStatusInProgress
		m.CurrentProblemID = &problem.ID
		m.QuestionSeq++
		m.QuestionStartedAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, nil, fmt.Errorf("%w: match already completed", apperrors.ErrConflict)
		}
		return nil, nil, err
	}

	if existingID != nil {
		problem, err = s.problemRepo.GetByID(*existingID)
		if err != nil {
			return nil, nil, err
		}
	}

	return updated, problem, nil
}

// SubmitMatchAnswer обрабатывает ответ игрока на открытый вопрос матча.
// Дисциплина та же, что в дуэли: маркер → судья → SetNX → условная запись.
// Закрытие вопроса решается по персистентным флагам матча, выставляемым
// в одной транзакции с записью счета: ответ не может считаться «данным»
// для закрытия раньше, чем учтено его очко. Redis-маркер служит только
// дедупликации. Исчерпание бюджета вопросов завершает матч (при равном
// счете — sudden death по одному вопросу).
func (s *TournamentService) SubmitMatchAnswer(ctx context.Context, matchUID string, userID string, answer string) (*entity.TournamentMatch, *mathjudge.Verdict, error) {
	match, err := s.tournamentRepo.GetMatchByUID(matchUID)
	if err != nil {
		return nil, nil, err
	}
	if !match.HasPlayer(userID) {
		return nil, nil, fmt.Errorf("%w: not a player of match %s", apperrors.ErrForbidden, matchUID)
	}
	if match.IsCompleted() {
		return nil, nil, fmt.Errorf("%w: match already completed", apperrors.ErrConflict)
	}
	if match.CurrentProblemID == nil || match.QuestionStartedAt == nil {
		return nil, nil, fmt.Errorf("%w: no active question", apperrors.ErrConflict)
	}

	room, err := s.tournamentRepo.GetByID(match.RoomID)
	if err != nil {
		return nil, nil, err
	}
	if room.Status != entity.RoomStatusInProgress {
		return nil, nil, fmt.Errorf("%w: tournament is not in progress", apperrors.ErrConflict)
	}

	marker := matchAnsweredKey(matchUID, match.QuestionSeq, userID)
	answered, err := s.cacheRepo.Exists(marker)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: answer marker store: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	if answered {
		return nil, nil, fmt.Errorf("%w: already answered this question", apperrors.ErrConflict)
	}

	problem, err := s.problemRepo.GetByID(*match.CurrentProblemID)
	if err != nil {
		return nil, nil, err
	}

	verdict, err := s.judge.Evaluate(ctx, answer, problem.Solution, problem.AlternativeForms)
	if err != nil {
		log.Printf("[Tournament] Судья недоступен для матча %s: %v", matchUID, err)
		return nil, nil, fmt.Errorf("%w: answer judge: %v", apperrors.ErrUpstreamUnavailable, err)
	}

	set, err := s.cacheRepo.SetNX(marker, "1", s.cfg.AnsweredMarkerTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: answer marker store: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	if !set {
		return nil, nil, fmt.Errorf("%w: already answered this question", apperrors.ErrConflict)
	}

	// Часы вопроса: секунды от выдачи, зажатые бюджетом вопроса.
	// После дедлайна ответ принимается без бонуса за скорость.
	elapsed := int(time.Since(*match.QuestionStartedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > room.TimePerQuestionSec {
		elapsed = room.TimePerQuestionSec
	}
	remaining := room.TimePerQuestionSec - elapsed

	questionSeq := match.QuestionSeq
	updated, err := s.tournamentRepo.ApplyMatch(matchUID, func(m *entity.TournamentMatch) error {
		if m.QuestionSeq != questionSeq || m.CurrentProblemID == nil {
			return fmt.Errorf("%w: question already resolved", apperrors.ErrConflict)
		}

		isPlayer1 := m.Player1 == userID
		if (isPlayer1 && m.Player1Answered) || (!isPlayer1 && m.Player2Answered) {
			return fmt.Errorf("%w: already answered this question", apperrors.ErrConflict)
		}

		if isPlayer1 {
			m.Player1Answered = true
			if verdict.IsCorrect {
				m.Player1Score++
			}
		} else {
			m.Player2Answered = true
			if verdict.IsCorrect {
				m.Player2Score++
			}
		}

		if m.Player1Answered && (m.Player2 == nil || m.Player2Answered) {
			s.closeQuestion(m, room)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, nil, fmt.Errorf("%w: match is no longer accepting answers", apperrors.ErrConflict)
		}
		return nil, nil, err
	}

	// Круговой зачет: очки за правильный ответ идут в таблицу сразу,
	// базовые 1000 плюс бонус за скорость
	if room.Format == entity.TournamentFormatRoundRobin {
		if verdict.IsCorrect {
			points := entity.RoundRobinBasePoints +
				entity.RoundRobinSpeedBonus*remaining/room.TimePerQuestionSec
			if err := s.tournamentRepo.AddStandingPoints(room.ID, userID, points, elapsed); err != nil {
				log.Printf("[Tournament] Не удалось начислить очки %s в турнире %s: %v", userID, room.Code, err)
			}
		} else {
			if err := s.tournamentRepo.AddStandingPoints(room.ID, userID, 0, elapsed); err != nil {
				log.Printf("[Tournament] Не удалось учесть время %s в турнире %s: %v", userID, room.Code, err)
			}
		}
	}

	if updated.IsCompleted() {
		if err := s.onMatchCompleted(room, updated); err != nil {
			log.Printf("[Tournament] Ошибка продвижения турнира %s после матча %s: %v", room.Code, matchUID, err)
		}
	}

	return updated, verdict, nil
}

// closeQuestion закрывает текущий вопрос матча и, если бюджет исчерпан,
// завершает матч. Равный счет после бюджета включает sudden death:
// матч продолжается по одному вопросу, пока счет не разойдется.
func (s *TournamentService) closeQuestion(m *entity.TournamentMatch, room *entity.TournamentRoom) {
	m.CurrentProblemID = nil
	m.QuestionStartedAt = nil
	m.Player1Answered = false
	m.Player2Answered = false

	budgetDone := m.QuestionSeq >= room.QuestionsPerMatch
	if !budgetDone && !m.SuddenDeath {
		return
	}

	if m.Player1Score == m.Player2Score {
		if !m.SuddenDeath {
			m.SuddenDeath = true
			log.Printf("[Tournament] Матч %s: ничья после %d вопросов, sudden death", m.MatchUID, m.QuestionSeq)
		}
		return
	}

	winner := m.Player1
	if m.Player2 != nil && m.Player2Score > m.Player1Score {
		winner = *m.Player2
	}
	m.Status = entity.MatchStatusCompleted
	m.WinnerID = &winner
	log.Printf("[Tournament] Матч %s завершен: %d-%d, победитель %s",
		m.MatchUID, m.Player1Score, m.Player2Score, winner)
}

// onMatchCompleted продвигает турнир после завершения матча: выбывание
// проигравшего в сетке, генерация следующего круга, определение чемпиона.
func (s *TournamentService) onMatchCompleted(room *entity.TournamentRoom, match *entity.TournamentMatch) error {
	if room.Format == entity.TournamentFormatKnockout && match.WinnerID != nil && match.Player2 != nil {
		loser := match.Player1
		if loser == *match.WinnerID {
			loser = *match.Player2
		}
		if err := s.tournamentRepo.MarkEliminated(room.ID, loser); err != nil {
			return err
		}
	}

	matches, err := s.tournamentRepo.GetMatches(room.ID)
	if err != nil {
		return err
	}

	if room.Format == entity.TournamentFormatRoundRobin {
		return s.maybeFinishRoundRobin(room, matches)
	}
	return s.maybeAdvanceKnockout(room, matches)
}

// maybeFinishRoundRobin завершает круговой турнир, когда сыграны все матчи.
// Чемпион — вершина таблицы.
func (s *TournamentService) maybeFinishRoundRobin(room *entity.TournamentRoom, matches []entity.TournamentMatch) error {
	for _, m := range matches {
		if !m.IsCompleted() {
			return nil
		}
	}

	standings, err := s.tournamentRepo.Standings(room.ID)
	if err != nil {
		return err
	}
	if len(standings) == 0 {
		return fmt.Errorf("%w: round-robin tournament %s has no participants", apperrors.ErrInvariantViolation, room.Code)
	}

	return s.completeTournament(room.Code, standings[0].UserID)
}

// maybeAdvanceKnockout строит следующий круг, когда текущий доигран.
// Единственный победитель последнего круга — чемпион.
func (s *TournamentService) maybeAdvanceKnockout(room *entity.TournamentRoom, matches []entity.TournamentMatch) error {
	lastRound := 0
	for _, m := range matches {
		if m.Round > lastRound {
			lastRound = m.Round
		}
	}

	var winners []string
	for _, m := range matches {
		if m.Round != lastRound {
			continue
		}
		if !m.IsCompleted() {
			return nil
		}
		if m.WinnerID != nil {
			winners = append(winners, *m.WinnerID)
		}
	}

	if len(winners) == 1 {
		return s.completeTournament(room.Code, winners[0])
	}
	if len(winners) == 0 {
		return fmt.Errorf("%w: knockout round %d of %s produced no winners", apperrors.ErrInvariantViolation, lastRound, room.Code)
	}

	next := buildKnockoutRound(room.ID, lastRound+1, winners)
	if err := s.tournamentRepo.CreateMatches(next); err != nil {
		return err
	}
	log.Printf("[Tournament] Турнир %s: круг %d из %d, %d матчей",
		room.Code, lastRound+1, knockoutRounds(room.MaxPlayers), len(next))

	// Bye следующего круга мог оказаться единственным матчем-проходом
	// (например, 3 победителя → 1 матч + 1 bye); цепочку продвигает
	// завершение реального матча, bye сам по себе круга не закрывает.
	return nil
}

// completeTournament переводит комнату в COMPLETED и фиксирует чемпиона.
// Условный переход делает завершение идемпотентным под гонкой двух
// последних сабмитов.
func (s *TournamentService) completeTournament(code string, winnerID string) error {
	_, err := s.tournamentRepo.ApplyIfStatusIn(code, []string{entity.RoomStatusInProgress}, func(r *entity.TournamentRoom) error {
		now := time.Now()
		r.Status = entity.RoomStatusCompleted
		r.WinnerID = &winnerID
		r.CompletedAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil
		}
		return err
	}
	log.Printf("[Tournament] Турнир %s завершен, чемпион %s", code, winnerID)
	return nil
}

// AbandonTournament переводит набирающий или идущий турнир в ABANDONED.
// Только хост. Идемпотентна по терминальной комнате.
func (s *TournamentService) AbandonTournament(code string, userID string) (*entity.TournamentRoom, error) {
	room, err := s.tournamentRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if room.HostID != userID {
		return nil, fmt.Errorf("%w: only the host can abandon the tournament", apperrors.ErrForbidden)
	}

	updated, err := s.tournamentRepo.ApplyIfStatusIn(code,
		[]string{entity.RoomStatusWaiting, entity.RoomStatusInProgress},
		func(r *entity.TournamentRoom) error {
			now := time.Now()
			r.Status = entity.RoomStatusAbandoned
			r.CompletedAt = &now
			return nil
		})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return s.tournamentRepo.GetByCode(code)
		}
		return nil, err
	}

	log.Printf("[Tournament] Турнир %s помечен как покинутый", code)
	return updated, nil
}

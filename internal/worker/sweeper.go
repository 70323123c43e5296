package worker

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/yourusername/integral-arena-api/internal/config"
	"github.com/yourusername/integral-arena-api/internal/domain/repository"
	"github.com/yourusername/integral-arena-api/internal/service"
)

// Sweeper — фоновая чистка: протухшие записи очереди автоподбора и
// брошенные WAITING комнаты (дуэли и турниры). Работает по расписанию
// и не держит никакого состояния между проходами.
type Sweeper struct {
	matchmaking    *service.MatchmakingService
	duelRooms      repository.DuelRoomRepository
	tournamentRepo repository.TournamentRepository
	cfg            *config.GameConfig

	scheduler gocron.Scheduler
}

// NewSweeper создает фоновую чистку
func NewSweeper(
	matchmaking *service.MatchmakingService,
	duelRooms repository.DuelRoomRepository,
	tournamentRepo repository.TournamentRepository,
	cfg *config.GameConfig,
) *Sweeper {
	return &Sweeper{
		matchmaking:    matchmaking,
		duelRooms:      duelRooms,
		tournamentRepo: tournamentRepo,
		cfg:            cfg,
	}
}

// Start запускает расписание чистки. Ошибка создания планировщика фатальна
// для вызывающего: без чистки очередь и WAITING комнаты растут бесконечно.
func (s *Sweeper) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.scheduler = sched

	// Каждый SweepInterval: протухшие записи очереди
	_, err = sched.NewJob(
		gocron.DurationJob(s.cfg.SweepInterval),
		gocron.NewTask(s.sweepQueue),
	)
	if err != nil {
		return err
	}

	// Каждые 5 минут: брошенные WAITING комнаты
	_, err = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(s.sweepWaitingRooms),
	)
	if err != nil {
		return err
	}

	sched.Start()
	log.Printf("[Sweeper] Фоновая чистка запущена (очередь каждые %v, комнаты каждые 5м)", s.cfg.SweepInterval)
	return nil
}

// Stop останавливает планировщик
func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			log.Printf("[Sweeper] Ошибка остановки планировщика: %v", err)
		}
	}
}

func (s *Sweeper) sweepQueue() {
	purged, err := s.matchmaking.PurgeStale()
	if err != nil {
		log.Printf("[Sweeper] Ошибка чистки очереди: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("[Sweeper] Удалено %d протухших записей очереди", purged)
	}
}

func (s *Sweeper) sweepWaitingRooms() {
	cutoff := time.Now().Add(-s.cfg.WaitingRoomTTL)

	abandoned, err := s.duelRooms.AbandonStaleWaiting(cutoff)
	if err != nil {
		log.Printf("[Sweeper] Ошибка чистки WAITING дуэлей: %v", err)
	} else if abandoned > 0 {
		log.Printf("[Sweeper] Помечено покинутыми %d WAITING дуэлей", abandoned)
	}

	abandoned, err = s.tournamentRepo.AbandonStaleWaiting(cutoff)
	if err != nil {
		log.Printf("[Sweeper] Ошибка чистки WAITING турниров: %v", err)
	} else if abandoned > 0 {
		log.Printf("[Sweeper] Помечено покинутыми %d WAITING турниров", abandoned)
	}
}

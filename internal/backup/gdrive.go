package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paceriz/paceriz/internal/workout"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	rootBackupsFolderName = "paceriz-backup"
	workoutsFileChunkSize = 200 // number of workouts in one backup file
)

type workoutsSource interface {
	ListSince(ctx context.Context, since time.Time) ([]workout.Workout, error)
}

// GoogleDriveBackupService mirrors stored workouts into Google Drive as
// chunked JSON files. Each run picks up workouts started after the
// newest existing backup file.
type GoogleDriveBackupService struct {
	workouts        workoutsSource
	service         *drive.Service
	backupsFolderId string
}

func NewGoogleDriveBackupService(
	ctx context.Context,
	credentialsJson []byte,
	workouts workoutsSource,
) (*GoogleDriveBackupService, error) {
	driveService, err := drive.NewService(ctx, option.WithCredentialsJSON(credentialsJson))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve drive client: %w", err)
	}

	s := &GoogleDriveBackupService{
		workouts: workouts,
		service:  driveService,
	}

	rootFolderQuery := fmt.Sprintf(
		"mimeType = 'application/vnd.google-apps.folder' and trashed = false and name = '%s'",
		rootBackupsFolderName,
	)
	backupsFolder, err := driveService.
		Files.List().
		Q(rootFolderQuery).
		Fields("files(id, name)").
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}

	switch len(backupsFolder.Files) {
	case 0:
		log.Debugln("root backups folder not found, creating ...")
		folderId, err := s.createRootBackupsFolder()
		if err != nil {
			return nil, fmt.Errorf("failed to create root backups folder: %w", err)
		}
		s.backupsFolderId = folderId
	case 1:
		s.backupsFolderId = backupsFolder.Files[0].Id
	default:
		log.Warnf("found %d root backups folders, taking the first one", len(backupsFolder.Files))
		s.backupsFolderId = backupsFolder.Files[0].Id
	}

	log.Debugf("backups folder: %s", s.backupsFolderId)
	return s, nil
}

// DoBackup uploads all workouts started after the newest backup file in
// chunks. Returns the number of workouts backed up.
func (s *GoogleDriveBackupService) DoBackup(ctx context.Context) (int, error) {
	backupFiles, err := s.service.
		Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", s.backupsFolderId)).
		Fields("files(id, name, createdTime)").
		Do()
	if err != nil {
		return 0, fmt.Errorf("list backup files: %w", err)
	}

	// find where the previous backup ended
	var lastBackedUp time.Time
	for _, file := range backupFiles.Files {
		backedUpUntil, ok := parseBackupFileName(file.Name)
		if !ok {
			log.Warnf("unexpected file in backups folder: %s", file.Name)
			continue
		}
		if backedUpUntil.After(lastBackedUp) {
			lastBackedUp = backedUpUntil
		}
	}

	toBackup, err := s.workouts.ListSince(ctx, lastBackedUp)
	if err != nil {
		return 0, fmt.Errorf("get workouts to backup: %w", err)
	}
	if len(toBackup) == 0 {
		log.Debugln("workouts backup: nothing new to back up")
		return 0, nil
	}

	for from := 0; from < len(toBackup); from += workoutsFileChunkSize {
		to := from + workoutsFileChunkSize
		if to > len(toBackup) {
			to = len(toBackup)
		}
		chunk := toBackup[from:to]

		if err := s.uploadChunk(chunk); err != nil {
			return from, fmt.Errorf("upload backup chunk: %w", err)
		}
	}

	log.Debugf("workouts backup done: %d workouts in %d files",
		len(toBackup), (len(toBackup)+workoutsFileChunkSize-1)/workoutsFileChunkSize)
	return len(toBackup), nil
}

func (s *GoogleDriveBackupService) uploadChunk(chunk []workout.Workout) error {
	chunkJson, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}

	lastStartedAt := chunk[len(chunk)-1].StartedAt
	file := &drive.File{
		Name:     backupFileName(lastStartedAt),
		MimeType: "application/json",
		Parents:  []string{s.backupsFolderId},
	}

	_, err = s.service.
		Files.Create(file).
		Media(bytes.NewReader(chunkJson)).
		Do()
	return err
}

func (s *GoogleDriveBackupService) createRootBackupsFolder() (string, error) {
	folder := &drive.File{
		Name:     rootBackupsFolderName,
		MimeType: "application/vnd.google-apps.folder",
	}
	created, err := s.service.
		Files.Create(folder).
		Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// backup file names carry the start time of their newest workout, e.g.
// workouts-until-2025-06-15T07-30-00Z.json
func backupFileName(until time.Time) string {
	stamp := until.UTC().Format("2006-01-02T15-04-05Z")
	return fmt.Sprintf("workouts-until-%s.json", stamp)
}

func parseBackupFileName(name string) (time.Time, bool) {
	var stamp string
	if _, err := fmt.Sscanf(name, "workouts-until-%s", &stamp); err != nil {
		return time.Time{}, false
	}
	stamp = strings.TrimSuffix(stamp, ".json")
	t, err := time.Parse("2006-01-02T15-04-05Z", stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

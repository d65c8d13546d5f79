package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"fleetdocs/internal/document/category"
	"fleetdocs/internal/document/models"
	"fleetdocs/internal/document/ports/mocks"
	categoryStore "fleetdocs/internal/document/store/category"
	documentStore "fleetdocs/internal/document/store/document"
	"fleetdocs/internal/entity"
	"fleetdocs/internal/filestore"
	id "fleetdocs/pkg/domain"
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/platform/audit"
	"fleetdocs/pkg/platform/audit/publisher"
	auditmemory "fleetdocs/pkg/platform/audit/store/memory"
	"fleetdocs/pkg/platform/dates"
	"fleetdocs/pkg/platform/tx"
	"fleetdocs/pkg/requestcontext"
)

var scan = []byte("%PDF-1.4\n%driver license scan\n")

// =============================================================================
// Document Service Test Suite
// =============================================================================
// Justification for unit tests: creation is where a document first gets a
// status and a file; edits must never slip past the version check; deletes
// are soft and must keep category references counted.

type DocumentServiceSuite struct {
	suite.Suite
	ctx        context.Context
	today      time.Time
	documents  *documentStore.InMemory
	categories *category.Service
	files      *filestore.Memory
	entities   *entity.Static
	events     *auditmemory.InMemoryStore
	service    *Service

	licenses *models.Category
}

func TestDocumentServiceSuite(t *testing.T) {
	suite.Run(t, new(DocumentServiceSuite))
}

func (s *DocumentServiceSuite) SetupTest() {
	s.today = time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithActorID(
		requestcontext.WithTime(context.Background(), s.today.Add(10*time.Hour)),
		"dispatcher-7",
	)
	s.documents = documentStore.NewInMemory()
	s.files = filestore.NewMemory()
	s.entities = entity.NewStatic()
	s.Require().NoError(s.entities.Register(models.EntityDriver, "drv-19", "Maria Lopez"))
	s.events = auditmemory.NewInMemoryStore()
	serial := tx.NewSerial()

	var err error
	s.categories, err = category.New(categoryStore.NewInMemory(), s.documents, serial)
	s.Require().NoError(err)
	s.licenses, err = s.categories.Create(s.ctx, models.CategoryParams{Name: "Driver License", RequiresRenewal: true, RenewalPeriodDays: 1460})
	s.Require().NoError(err)

	s.service = s.newService(s.documents)
}

func (s *DocumentServiceSuite) newService(store DocumentStore) *Service {
	svc, err := New(Deps{
		Documents:  store,
		Categories: s.categories,
		Files:      s.files,
		Tx:         tx.NewSerial(),
		Entities:   s.entities,
	},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher.New(s.events)),
	)
	s.Require().NoError(err)
	return svc
}

func (s *DocumentServiceSuite) request(expiresIn int) CreateRequest {
	return CreateRequest{
		Params: models.DocumentParams{
			DocumentNumber: "DL-88213",
			CategoryID:     s.licenses.ID,
			Title:          "Maria's CDL",
			EntityType:     models.EntityDriver,
			EntityID:       "drv-19",
			Tags:           []string{"CDL", " cdl ", "Class B"},
			IssueDate:      dates.AddDays(s.today, -1000),
			ExpiryDate:     dates.AddDays(s.today, expiresIn),
		},
		Upload: models.Upload{Name: "cdl.pdf", ContentType: "application/pdf", Data: scan},
	}
}

func (s *DocumentServiceSuite) TestNew() {
	full := Deps{Documents: s.documents, Categories: s.categories, Files: s.files, Tx: tx.NewSerial()}

	cases := map[string]func(d *Deps){
		"document store is required":  func(d *Deps) { d.Documents = nil },
		"category lookup is required": func(d *Deps) { d.Categories = nil },
		"file store is required":      func(d *Deps) { d.Files = nil },
		"tx runner is required":       func(d *Deps) { d.Tx = nil },
	}
	for want, mutate := range cases {
		s.Run(want, func() {
			deps := full
			mutate(&deps)
			_, err := New(deps)
			s.ErrorContains(err, want)
		})
	}

	s.Run("entity directory is optional", func() {
		_, err := New(full)
		s.NoError(err)
	})
}

// =============================================================================
// Create Tests
// =============================================================================

func (s *DocumentServiceSuite) TestCreate() {
	doc, err := s.service.Create(s.ctx, s.request(20))
	s.Require().NoError(err)

	s.Equal(int64(1), doc.Version)
	s.Equal(models.StatusExpiringSoon, doc.Status)
	s.Equal("Maria Lopez", doc.EntityName, "resolved from the directory")
	s.Equal([]string{"cdl", "class b"}, doc.Tags)
	s.True(s.files.Has(doc.File.Key))
	s.Equal("cdl.pdf", doc.File.Name)

	stored, err := s.documents.FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.File, stored.File)

	events, err := s.events.ListByAggregate(s.ctx, doc.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.EventDocumentCreated, events[0].Action)
	s.Equal("dispatcher-7", events[0].ActorID)
	s.Equal("EXPIRING_SOON", events[0].Attributes["status"])
}

func (s *DocumentServiceSuite) TestCreate_EntityNames() {
	s.Run("a directory miss never blocks creation", func() {
		req := s.request(200)
		req.Params.EntityID = "drv-unknown"
		doc, err := s.service.Create(s.ctx, req)
		s.Require().NoError(err)
		s.Empty(doc.EntityName)
	})

	s.Run("a supplied name is kept", func() {
		req := s.request(200)
		req.Params.EntityName = "M. Lopez"
		doc, err := s.service.Create(s.ctx, req)
		s.Require().NoError(err)
		s.Equal("M. Lopez", doc.EntityName)
	})
}

func (s *DocumentServiceSuite) TestCreate_WithExistingFileRef() {
	req := s.request(200)
	req.Upload = models.Upload{}
	req.Params.File = models.FileRef{Key: "documents/2026/01/existing.pdf", Name: "existing.pdf"}

	doc, err := s.service.Create(s.ctx, req)
	s.Require().NoError(err)
	s.Equal("documents/2026/01/existing.pdf", doc.File.Key)
	s.Zero(s.files.Len())
}

func (s *DocumentServiceSuite) TestCreate_Rejections() {
	s.Run("expiry before issue", func() {
		req := s.request(200)
		req.Params.IssueDate = dates.AddDays(s.today, 300)
		_, err := s.service.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(dErrors.FieldsOf(err), "expiry_date")
	})

	s.Run("unknown category", func() {
		req := s.request(200)
		req.Params.CategoryID = id.NewCategoryID()
		_, err := s.service.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(dErrors.FieldsOf(err), "category_id")
	})

	s.Run("no file at all", func() {
		req := s.request(200)
		req.Upload = models.Upload{}
		_, err := s.service.Create(s.ctx, req)
		s.Contains(dErrors.FieldsOf(err), "file")
	})

	s.Run("unsupported upload", func() {
		req := s.request(200)
		req.Upload = models.Upload{Name: "cdl.exe", ContentType: "application/octet-stream", Data: []byte("MZ")}
		_, err := s.service.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeFileRejected))
	})

	s.Run("nothing stored after rejections", func() {
		s.Zero(s.files.Len())
	})
}

func (s *DocumentServiceSuite) TestCreate_StorageFailureRemovesUpload() {
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockDocumentStore(ctrl)
	svc := s.newService(store)

	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	_, err := svc.Create(s.ctx, s.request(200))
	s.True(dErrors.HasCode(err, dErrors.CodeStorageFailure))
	s.Zero(s.files.Len())
}

// =============================================================================
// Get / Update Tests
// =============================================================================

func (s *DocumentServiceSuite) TestGet_AlwaysReclassifies() {
	doc, err := s.service.Create(s.ctx, s.request(45))
	s.Require().NoError(err)
	s.Require().Equal(models.StatusValid, doc.Status)

	later := requestcontext.WithTime(context.Background(), dates.AddDays(s.today, 50))
	got, err := s.service.Get(later, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, got.Status)

	_, err = s.service.Get(s.ctx, id.NewDocumentID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *DocumentServiceSuite) TestUpdate() {
	doc, err := s.service.Create(s.ctx, s.request(45))
	s.Require().NoError(err)

	s.Run("widening the reminder window moves the status", func() {
		window := 60
		updated, err := s.service.Update(s.ctx, doc.ID, UpdateRequest{
			Patch:           models.DocumentPatch{ReminderDays: &window},
			ExpectedVersion: doc.Version,
		})
		s.Require().NoError(err)
		s.Equal(models.StatusExpiringSoon, updated.Status)
		s.Equal(doc.Version+1, updated.Version)
		s.Equal(doc.ExpiryDate, updated.ExpiryDate)
	})

	s.Run("an outdated expected version conflicts", func() {
		title := "Stale edit"
		_, err := s.service.Update(s.ctx, doc.ID, UpdateRequest{
			Patch:           models.DocumentPatch{Title: &title},
			ExpectedVersion: doc.Version,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("changing the entity re-resolves its name", func() {
		s.Require().NoError(s.entities.Register(models.EntityDriver, "drv-20", "Sam Okafor"))
		entityID := "drv-20"
		updated, err := s.service.Update(s.ctx, doc.ID, UpdateRequest{Patch: models.DocumentPatch{EntityID: &entityID}})
		s.Require().NoError(err)
		s.Equal("Sam Okafor", updated.EntityName)
	})

	s.Run("empty patch", func() {
		_, err := s.service.Update(s.ctx, doc.ID, UpdateRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("invalid field leaves the document untouched", func() {
		blank := " "
		_, err := s.service.Update(s.ctx, doc.ID, UpdateRequest{Patch: models.DocumentPatch{Title: &blank}})
		s.Contains(dErrors.FieldsOf(err), "title")

		stored, err := s.documents.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal("Maria's CDL", stored.Title)
	})

	s.Run("moving to an unknown category", func() {
		other := id.NewCategoryID()
		_, err := s.service.Update(s.ctx, doc.ID, UpdateRequest{Patch: models.DocumentPatch{CategoryID: &other}})
		s.Contains(dErrors.FieldsOf(err), "category_id")
	})

	events, err := s.events.ListByAggregate(s.ctx, doc.ID.String())
	s.Require().NoError(err)
	s.Len(events, 3, "one create and two successful updates")
}

// =============================================================================
// Delete Tests
// =============================================================================

func (s *DocumentServiceSuite) TestDelete_IsSoft() {
	doc, err := s.service.Create(s.ctx, s.request(200))
	s.Require().NoError(err)

	s.Require().NoError(s.service.Delete(s.ctx, doc.ID))

	_, err = s.service.Get(s.ctx, doc.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.service.Delete(s.ctx, doc.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "deleting twice is not found")

	s.True(s.files.Has(doc.File.Key), "the artifact is retained")

	err = s.categories.Delete(s.ctx, s.licenses.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "soft-deleted documents still reference their category")

	events, err := s.events.ListByAggregate(s.ctx, doc.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.EventDocumentDeleted, events[1].Action)
}

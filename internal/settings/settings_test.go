package settings_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	appErrors "github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	settingsDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/settings"
	coreUser "github.com/frahmantamala/hoa-reimbursement/internal/core/user"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	settingsPostgres "github.com/frahmantamala/hoa-reimbursement/internal/settings/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("Settings", func() {
	Describe("RequiresSecondApproval", func() {
		It("is disabled when the threshold is zero", func() {
			s := settings.Defaults()
			Expect(s.RequiresSecondApproval(decimal.NewFromInt(10000))).To(BeFalse())
		})

		It("applies at and above the threshold", func() {
			s := settings.Defaults()
			s.DualApprovalThreshold = decimal.NewFromInt(100)
			Expect(s.RequiresSecondApproval(decimal.NewFromInt(99))).To(BeFalse())
			Expect(s.RequiresSecondApproval(decimal.NewFromInt(100))).To(BeTrue())
			Expect(s.RequiresSecondApproval(decimal.NewFromInt(150))).To(BeTrue())
		})
	})

	Describe("Validate", func() {
		It("accepts the defaults", func() {
			Expect(settings.Defaults().Validate()).To(Succeed())
		})

		It("rejects a negative threshold and a zero stale window together", func() {
			s := settings.Defaults()
			s.DualApprovalThreshold = decimal.NewFromInt(-1)
			s.StaleDraftDays = 0

			err := s.Validate()
			appErr, ok := appErrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			details := appErr.Details.(appErrors.ValidationErrors)
			Expect(details.Errors).To(HaveLen(2))
			Expect(details.Errors[0].Field).To(Equal("dual_approval_threshold"))
			Expect(details.Errors[1].Field).To(Equal("stale_draft_days"))
		})
	})

	Describe("FromWorkflowConfig", func() {
		It("falls back to the default stale window", func() {
			s := settings.FromWorkflowConfig(appErrors.WorkflowConfig{DefaultHourlyRate: 30, MileageRate: 0.5})
			Expect(s.StaleDraftDays).To(Equal(settings.DefaultStaleDraftDays))
			Expect(s.DefaultHourlyRate.Equal(decimal.NewFromInt(30))).To(BeTrue())
		})
	})
})

var _ = Describe("Settings Service and Handler", func() {
	var (
		db      *gorm.DB
		service *settings.Service
		handler *settings.Handler
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&settingsDatamodel.Settings{})).To(Succeed())

		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = settings.NewService(settingsPostgres.NewSettingsRepository(db), settings.Defaults(), slogger)
		handler = settings.NewHandler(service)
	})

	It("serves defaults before anything is saved", func() {
		s, err := service.Current(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.StaleDraftDays).To(Equal(7))
	})

	It("persists a partial update and keeps untouched fields", func() {
		threshold := decimal.NewFromInt(500)
		_, err := service.Update(ctx, "t1", true, settings.UpdateSettingsDTO{DualApprovalThreshold: &threshold})
		Expect(err).NotTo(HaveOccurred())

		s, err := service.Current(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.DualApprovalThreshold.Equal(threshold)).To(BeTrue())
		Expect(s.DefaultHourlyRate.Equal(decimal.NewFromInt(25))).To(BeTrue())
		Expect(s.UpdatedBy).To(Equal("t1"))
	})

	It("upserts the single row on repeated saves", func() {
		days := 10
		_, err := service.Update(ctx, "t1", true, settings.UpdateSettingsDTO{StaleDraftDays: &days})
		Expect(err).NotTo(HaveOccurred())
		days = 14
		_, err = service.Update(ctx, "t1", true, settings.UpdateSettingsDTO{StaleDraftDays: &days})
		Expect(err).NotTo(HaveOccurred())

		var count int64
		Expect(db.Model(&settingsDatamodel.Settings{}).Count(&count).Error).To(Succeed())
		Expect(count).To(Equal(int64(1)))
	})

	It("refuses updates from members", func() {
		days := 3
		_, err := service.Update(ctx, "m1", false, settings.UpdateSettingsDTO{StaleDraftDays: &days})
		Expect(errors.Is(err, appErrors.ErrUnauthorizedAccess)).To(BeTrue())
	})

	It("returns 400 with field details for invalid values over HTTP", func() {
		body, _ := json.Marshal(map[string]interface{}{"stale_draft_days": 0})
		req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
		req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: "t1", Role: coreUser.RoleTreasurer}))
		rec := httptest.NewRecorder()

		handler.UpdateSettings(rec, req)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		var resp map[string]map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["error"]["code"]).To(Equal("VALIDATION_FAILED"))
	})

	It("returns the current settings over HTTP", func() {
		req := httptest.NewRequest(http.MethodGet, "/settings", nil)
		rec := httptest.NewRecorder()

		handler.GetSettings(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"stale_draft_days":7`))
	})
})

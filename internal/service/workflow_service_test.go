package service

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/domain"
)

func newWorkflowFixture() (*memUserRepo, *memWorkflowRepo, WorkflowService) {
	userRepo := newMemUserRepo()
	workflowRepo := newMemWorkflowRepo()
	activities := NewActivityService(&memActivityRepo{}, zap.NewNop())
	membership := NewMembershipService(userRepo, activities, zap.NewNop())
	svc := NewWorkflowService(workflowRepo, membership, zap.NewNop())
	return userRepo, workflowRepo, svc
}

func TestGetWorkflowByID_BumpsViewCount(t *testing.T) {
	_, workflowRepo, svc := newWorkflowFixture()
	wf := workflowRepo.seed(&domain.Workflow{Title: "crawler", FileURL: "/files/crawler.json"})

	got, err := svc.GetByID(wf.ID)
	if err != nil {
		t.Fatalf("get workflow: %v", err)
	}
	if got.ViewCount != 1 {
		t.Errorf("view count = %d, want 1", got.ViewCount)
	}

	if _, err := svc.GetByID(999); !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("err = %v, want ErrWorkflowNotFound", err)
	}
}

func TestDownload_PlainUserDenied(t *testing.T) {
	userRepo, workflowRepo, svc := newWorkflowFixture()
	user := userRepo.seed(&domain.User{Username: "alice", Role: domain.UserRoleUser})
	wf := workflowRepo.seed(&domain.Workflow{Title: "etl", FileURL: "/files/etl.json"})

	if _, err := svc.Download(user, wf.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}

	// 拒绝下载不产生资源侧计数
	stored, _ := workflowRepo.GetByID(wf.ID)
	if stored.DownloadCount != 0 {
		t.Errorf("workflow download count = %d, want 0", stored.DownloadCount)
	}
}

func TestDownload_VipSuccess(t *testing.T) {
	userRepo, workflowRepo, svc := newWorkflowFixture()
	user := userRepo.seed(&domain.User{
		Username: "bob", Role: domain.UserRoleVip, IsVip: true,
		MaxDownloads: domain.VipMaxDownloads,
	})
	wf := workflowRepo.seed(&domain.Workflow{Title: "report", FileURL: "/files/report.json"})

	fileURL, err := svc.Download(user, wf.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if fileURL != "/files/report.json" {
		t.Errorf("file url = %q, want /files/report.json", fileURL)
	}

	// 用户配额与资源计数都递增
	storedUser, _ := userRepo.GetByID(user.ID)
	if storedUser.DownloadCount != 1 {
		t.Errorf("user download count = %d, want 1", storedUser.DownloadCount)
	}
	storedWf, _ := workflowRepo.GetByID(wf.ID)
	if storedWf.DownloadCount != 1 {
		t.Errorf("workflow download count = %d, want 1", storedWf.DownloadCount)
	}
}

func TestDownload_VipQuotaExhausted(t *testing.T) {
	userRepo, workflowRepo, svc := newWorkflowFixture()
	user := userRepo.seed(&domain.User{
		Username: "carol", Role: domain.UserRoleVip, IsVip: true,
		MaxDownloads: domain.VipMaxDownloads, DownloadCount: domain.VipMaxDownloads,
	})
	wf := workflowRepo.seed(&domain.Workflow{Title: "ocr", FileURL: "/files/ocr.json"})

	if _, err := svc.Download(user, wf.ID); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}

	stored, _ := workflowRepo.GetByID(wf.ID)
	if stored.DownloadCount != 0 {
		t.Errorf("workflow download count = %d, want 0 after quota rejection", stored.DownloadCount)
	}
}

func TestDownload_DeletedWorkflow(t *testing.T) {
	userRepo, workflowRepo, svc := newWorkflowFixture()
	user := userRepo.seed(&domain.User{Username: "dave", Role: domain.UserRoleSvip, IsSvip: true})
	wf := workflowRepo.seed(&domain.Workflow{Title: "old", FileURL: "/files/old.json"})

	if err := workflowRepo.Delete(wf.ID); err != nil {
		t.Fatalf("delete workflow: %v", err)
	}

	if _, err := svc.Download(user, wf.ID); !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("err = %v, want ErrWorkflowNotFound", err)
	}
}

func TestUpdateWorkflow_PartialFields(t *testing.T) {
	_, workflowRepo, svc := newWorkflowFixture()
	wf := workflowRepo.seed(&domain.Workflow{
		Title: "scraper", Description: "v1", Category: "data", FileURL: "/files/scraper.json",
	})

	title := "scraper v2"
	got, err := svc.Update(wf.ID, &domain.UpdateWorkflowRequest{Title: &title})
	if err != nil {
		t.Fatalf("update workflow: %v", err)
	}
	if got.Title != "scraper v2" {
		t.Errorf("title = %q, want scraper v2", got.Title)
	}
	if got.Description != "v1" || got.Category != "data" {
		t.Error("unset fields must keep their values")
	}
}

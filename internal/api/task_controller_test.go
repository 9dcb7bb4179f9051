package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mautops/pickup-gin/internal/api"
	"github.com/mautops/pickup-gin/internal/auth"
	"github.com/mautops/pickup-gin/internal/model"
	"github.com/mautops/pickup-gin/internal/repository"
	"github.com/mautops/pickup-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

// testServer 控制器测试环境
type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

// setupTestServer 创建带内存数据库和完整路由的测试服务器
func setupTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.TaskModel{},
		&model.ContainerModel{},
		&model.StandModel{},
		&model.BoxModel{},
		&model.FillHistoryModel{},
		&model.ActivityLogModel{},
	)
	require.NoError(t, err)

	activityLog := service.NewActivityLogService(repository.NewActivityLogRepository(db))
	taskSvc := service.NewTaskService(db, activityLog)
	containerSvc := service.NewContainerService(db, activityLog)
	scheduler, err := service.NewDailyScheduler(db, activityLog, nil, nil)
	require.NoError(t, err)

	taskController := api.NewTaskController(taskSvc)
	containerController := api.NewContainerController(containerSvc)
	schedulerController := api.NewSchedulerController(scheduler)

	router := gin.New()
	router.Use(api.RequestIDMiddleware())

	v1 := router.Group("/api/v1")
	v1.Use(auth.IdentityMiddleware(auth.NewTokenValidator(testSecret)))
	{
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskController.Create)
			tasks.GET("", taskController.List)
			tasks.GET("/:id", taskController.Get)
			tasks.POST("/:id/claim", taskController.Claim)
			tasks.POST("/:id/accept", taskController.Accept)
			tasks.POST("/:id/pickup", taskController.Pickup)
			tasks.POST("/:id/transit", taskController.Transit)
			tasks.POST("/:id/deliver", taskController.Deliver)
			tasks.POST("/:id/cancel", taskController.Cancel)
			tasks.POST("/:id/handover", taskController.Handover)
			tasks.POST("/:id/assign", taskController.Assign)
			tasks.PUT("/:id/status", taskController.SetStatus)
		}
		containers := v1.Group("/containers")
		{
			containers.GET("/:id", containerController.Get)
			containers.GET("/:id/history", containerController.History)
			containers.POST("/:id/reset", containerController.Reset)
		}
		schedulerGroup := v1.Group("/scheduler")
		{
			schedulerGroup.POST("/daily-run", schedulerController.RunDaily)
		}
	}

	return &testServer{router: router, db: db}
}

// token 签发测试身份令牌
func token(t *testing.T, subject, role string) string {
	claims := auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// request 发起带身份的 JSON 请求
func (s *testServer) request(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// seedContainers 准备来源与目标容器
func (s *testServer) seedContainers(t *testing.T, destAmount float64) {
	now := time.Now()
	require.NoError(t, s.db.Create(&model.ContainerModel{
		ID: "cont-src", Kind: model.ContainerKindSource, MaterialType: "aluminium",
		Unit: "kg", CurrentAmount: 200, MaxCapacity: 500,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, s.db.Create(&model.ContainerModel{
		ID: "cont-dst", Kind: model.ContainerKindDestination, MaterialType: "aluminium",
		Unit: "kg", CurrentAmount: destAmount, MaxCapacity: 1000,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
}

// createTask 通过 API 创建任务并返回任务 ID
func (s *testServer) createTask(t *testing.T, bearer string, body map[string]interface{}) string {
	w := s.request(t, http.MethodPost, "/api/v1/tasks", bearer, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data model.TaskModel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

// TestTaskAPI_RequiresAuth 测试无身份请求被拒
func TestTaskAPI_RequiresAuth(t *testing.T) {
	s := setupTestServer(t)

	w := s.request(t, http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestTaskAPI_CreateAndGet 测试创建与查询
func TestTaskAPI_CreateAndGet(t *testing.T) {
	s := setupTestServer(t)
	s.seedContainers(t, 0)
	bearer := token(t, "worker-1", auth.RoleWorker)

	id := s.createTask(t, bearer, map[string]interface{}{
		"source_container_id": "cont-src",
		"material_type":       "aluminium",
		"planned_quantity":    150,
	})

	w := s.request(t, http.MethodGet, "/api/v1/tasks/"+id, bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"PLANNED"`)

	// 未知任务返回 404
	w = s.request(t, http.MethodGet, "/api/v1/tasks/missing", bearer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 缺失必填字段返回 400
	w = s.request(t, http.MethodPost, "/api/v1/tasks", bearer, map[string]interface{}{
		"material_type": "aluminium",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestTaskAPI_LifecycleFlow 测试认领到交付的完整链路
func TestTaskAPI_LifecycleFlow(t *testing.T) {
	s := setupTestServer(t)
	s.seedContainers(t, 0)
	bearer := token(t, "worker-1", auth.RoleWorker)

	id := s.createTask(t, bearer, map[string]interface{}{
		"source_container_id":      "cont-src",
		"destination_container_id": "cont-dst",
		"material_type":            "aluminium",
		"planned_quantity":         150,
	})

	w := s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/claim", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"ACCEPTED"`)
	assert.Contains(t, w.Body.String(), `"already_done":false`)

	// 认领重试返回 200 并标记 already_done
	w = s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/claim", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"already_done":true`)

	// 他人认领冲突返回 409 并指明归属
	w = s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/claim", token(t, "worker-2", auth.RoleWorker), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "worker-1")

	w = s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/pickup", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/transit", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/deliver", bearer, map[string]interface{}{
		"measured_weight": 140,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"COMPLETED"`)

	// 目标容器入账可通过容器接口查询
	w = s.request(t, http.MethodGet, "/api/v1/containers/cont-dst", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"CurrentAmount":140`)

	w = s.request(t, http.MethodGet, "/api/v1/containers/cont-dst/history", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

// TestTaskAPI_TransitionConflict 测试非法转换返回 409 与状态上下文
func TestTaskAPI_TransitionConflict(t *testing.T) {
	s := setupTestServer(t)
	s.seedContainers(t, 0)
	admin := token(t, "admin-1", auth.RoleAdmin)

	id := s.createTask(t, admin, map[string]interface{}{
		"source_container_id": "cont-src",
		"material_type":       "aluminium",
	})

	w := s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/pickup", admin, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"current_status":"PLANNED"`)
	assert.Contains(t, w.Body.String(), `"requested_status":"PICKED_UP"`)
}

// TestTaskAPI_CapacityExceeded 测试容量不足返回 422 与数值上下文
func TestTaskAPI_CapacityExceeded(t *testing.T) {
	s := setupTestServer(t)
	s.seedContainers(t, 900)
	bearer := token(t, "worker-1", auth.RoleWorker)

	id := s.createTask(t, bearer, map[string]interface{}{
		"source_container_id":      "cont-src",
		"destination_container_id": "cont-dst",
		"material_type":            "aluminium",
		"planned_quantity":         150,
	})

	// 剩余 100,计划 150:接受即被拒
	w := s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/accept", bearer, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"requested":150`)
	assert.Contains(t, w.Body.String(), `"remaining_capacity":100`)
}

// TestTaskAPI_AutomotiveStatus 测试汽车件状态接口
func TestTaskAPI_AutomotiveStatus(t *testing.T) {
	s := setupTestServer(t)
	s.seedContainers(t, 0)
	bearer := token(t, "worker-1", auth.RoleWorker)

	id := s.createTask(t, bearer, map[string]interface{}{
		"workflow":                 "automotive",
		"source_container_id":      "cont-src",
		"destination_container_id": "cont-dst",
		"material_type":            "aluminium",
	})

	w := s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/claim", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"OPEN"`)

	for _, status := range []string{"PICKED_UP", "IN_TRANSIT", "DROPPED_OFF", "TAKEN_OVER"} {
		w = s.request(t, http.MethodPut, "/api/v1/tasks/"+id+"/status", bearer, map[string]interface{}{
			"status": status,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// 称重缺少重量返回 422
	w = s.request(t, http.MethodPut, "/api/v1/tasks/"+id+"/status", bearer, map[string]interface{}{
		"status": "WEIGHED",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.request(t, http.MethodPut, "/api/v1/tasks/"+id+"/status", bearer, map[string]interface{}{
		"status": "WEIGHED", "weight": 42.5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"WEIGHED"`)
}

// TestTaskAPI_AssignAndHandover 测试指派与移交接口
func TestTaskAPI_AssignAndHandover(t *testing.T) {
	s := setupTestServer(t)
	s.seedContainers(t, 0)
	admin := token(t, "admin-1", auth.RoleAdmin)
	workerToken := token(t, "worker-1", auth.RoleWorker)

	id := s.createTask(t, admin, map[string]interface{}{
		"source_container_id": "cont-src",
		"material_type":       "aluminium",
	})

	// 非管理员指派返回 403
	w := s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/assign", workerToken, map[string]interface{}{
		"to_user_id": "worker-1",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/assign", admin, map[string]interface{}{
		"to_user_id": "worker-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ASSIGNED"`)

	w = s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/accept", workerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/handover", workerToken, map[string]interface{}{
		"to_user_id": "worker-2",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "worker-2")
}

// TestTaskAPI_Cancel 测试取消接口
func TestTaskAPI_Cancel(t *testing.T) {
	s := setupTestServer(t)
	s.seedContainers(t, 0)
	admin := token(t, "admin-1", auth.RoleAdmin)

	id := s.createTask(t, admin, map[string]interface{}{
		"source_container_id": "cont-src",
		"material_type":       "aluminium",
	})

	w := s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/cancel", admin, map[string]interface{}{
		"reason": "customer withdrew order",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"CANCELLED"`)

	// 取消重试幂等
	w = s.request(t, http.MethodPost, "/api/v1/tasks/"+id+"/cancel", admin, map[string]interface{}{
		"reason": "customer withdrew order",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"already_done":true`)
}

// TestContainerAPI_Reset 测试容器重置接口
func TestContainerAPI_Reset(t *testing.T) {
	s := setupTestServer(t)
	s.seedContainers(t, 300)

	// 非管理员返回 403
	w := s.request(t, http.MethodPost, "/api/v1/containers/cont-dst/reset", token(t, "worker-1", auth.RoleWorker), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.request(t, http.MethodPost, "/api/v1/containers/cont-dst/reset", token(t, "admin-1", auth.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"CurrentAmount":0`)
}

// TestSchedulerAPI_DailyRun 测试手动触发每日任务生成
func TestSchedulerAPI_DailyRun(t *testing.T) {
	s := setupTestServer(t)
	now := time.Now()
	require.NoError(t, s.db.Create(&model.StandModel{
		ID: "stand-001", Name: "front gate", SourceContainerID: "cont-001",
		MaterialType: "aluminium", Unit: "kg", Active: true, DailyFull: true,
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	// 非管理员返回 403
	w := s.request(t, http.MethodPost, "/api/v1/scheduler/daily-run", token(t, "worker-1", auth.RoleWorker), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	adminToken := token(t, "admin-1", auth.RoleAdmin)
	w = s.request(t, http.MethodPost, "/api/v1/scheduler/daily-run", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"created_count":1`)

	// 同日重复触发全部跳过
	w = s.request(t, http.MethodPost, "/api/v1/scheduler/daily-run", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"skipped_count":1`)

	var taskCount int64
	require.NoError(t, s.db.Model(&model.TaskModel{}).Count(&taskCount).Error)
	assert.Equal(t, int64(1), taskCount)
}

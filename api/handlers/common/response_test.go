package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("成功响应", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		OK(c, http.StatusCreated, map[string]string{"id": "1"})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"success":true,"data":{"id":"1"}}`, w.Body.String())
	})

	t.Run("列表响应", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		List(c, http.StatusOK, []string{"a", "b"}, 2)

		var resp struct {
			Data ListResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Data.Total)
		assert.Len(t, resp.Data.Items, 2)
	})

	t.Run("错误响应", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Fail(c, http.StatusNotFound, CodeNotFound, "作业不存在")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.True(t, c.IsAborted())
		assert.JSONEq(t, `{"success":false,"code":"NOT_FOUND","message":"作业不存在"}`, w.Body.String())
	})

	t.Run("租户 ID", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.Empty(t, TenantID(c))
		c.Set("tenant_id", "t1")
		assert.Equal(t, "t1", TenantID(c))
	})
}

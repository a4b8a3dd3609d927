package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes 请求体上限（选择等小型 JSON）
const maxBodyBytes = 64 << 10

// writeJSON 控制台数据实时变化，禁止缓存
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// reply 成功响应
func reply(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, Ok(result))
}

// fail 业务失败同样返回 HTTP 200，由 code 区分
func fail(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Fail(message))
}

// queryInt 读取正整数查询参数，缺失或非法时返回 def
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// pathID 路径中的数字 id
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// decodeBody 解析 JSON 请求体；空请求体保持 out 不变
func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// operator 操作员标识（由前置网关写入）
func operator(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"fmt"
	"net/http"

	"subtitle-history-api/internal/application/subtitles"
	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/interfaces/http/dto"
	apperrors "subtitle-history-api/pkg/errors"
	"subtitle-history-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SubtitleHandler 字幕版本处理器；每个请求使用独立的 Session
type SubtitleHandler struct {
	svc *subtitles.Service
}

// NewSubtitleHandler 创建字幕版本处理器
func NewSubtitleHandler(svc *subtitles.Service) *SubtitleHandler {
	return &SubtitleHandler{svc: svc}
}

// respondError 4xx 直接返回，5xx 记录日志后返回
func respondError(c *gin.Context, msg string, err error) {
	appErr := apperrors.AsAppError(err)
	if appErr.HTTPStatus == 0 || appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), msg, err)
	}
	dto.AppError(c, appErr)
}

// requireUser 写操作必须携带用户身份
func requireUser(c *gin.Context) (string, bool) {
	userID := dto.BindUserID(c)
	if userID == "" {
		dto.Error(c, http.StatusUnauthorized, "user identity required")
		return "", false
	}
	return userID, true
}

// loadLanguage 按路由参数加载语言分支，不存在时返回 404
func loadLanguage(c *gin.Context, sess *subtitles.Session) (*entity.SubtitleLanguage, bool) {
	videoID, code := dto.BindVideoID(c), dto.BindLanguageCode(c)
	lang, err := sess.GetLanguage(c.Request.Context(), videoID, code)
	if err != nil {
		respondError(c, "failed to load subtitle language", err)
		return nil, false
	}
	if lang == nil {
		dto.AppError(c, apperrors.ErrLanguageNotFound.WithDetail(fmt.Sprintf("%s/%s", videoID, code)))
		return nil, false
	}
	return lang, true
}

// loadVersion 按版本号加载分支内任意状态的版本
func loadVersion(c *gin.Context, sess *subtitles.Session, lang *entity.SubtitleLanguage) (*entity.SubtitleVersion, bool) {
	number, ok := dto.BindVersionNumber(c)
	if !ok {
		dto.BadRequest(c, "invalid version number")
		return nil, false
	}
	v, err := sess.GetVersion(c.Request.Context(), lang, number, entity.ClassFull)
	if err != nil {
		respondError(c, "failed to load subtitle version", err)
		return nil, false
	}
	if v == nil {
		dto.AppError(c, apperrors.ErrVersionNotFound.WithDetail(fmt.Sprintf("%s v%d", lang.LanguageCode, number)))
		return nil, false
	}
	return v, true
}

// ListLanguages 列出视频的语言分支及其 public/extant tip
// @Summary 列出语言分支
// @Tags Subtitles
// @Produce json
// @Param vid path string true "视频 ID"
// @Success 200 {object} dto.Response[[]dto.LanguageResponse]
// @Router /v1/videos/{vid}/languages [get]
func (h *SubtitleHandler) ListLanguages(c *gin.Context) {
	ctx := c.Request.Context()
	sess := h.svc.NewSession()

	langs, err := sess.ListLanguages(ctx, dto.BindVideoID(c))
	if err != nil {
		respondError(c, "failed to list subtitle languages", err)
		return
	}
	tips, err := sess.FetchAndJoin(ctx, langs, subtitles.JoinOptions{PublicTip: true, ExtantTip: true})
	if err != nil {
		respondError(c, "failed to fetch subtitle tips", err)
		return
	}

	out := make([]*dto.LanguageResponse, 0, len(langs))
	for _, lang := range langs {
		var public, extant *entity.SubtitleVersion
		if t := tips[lang.ID]; t != nil {
			public, extant = t.Public, t.Extant
		}
		out = append(out, dto.ToLanguageResponse(lang, public, extant))
	}
	dto.Success(c, out)
}

// GetTip 查询分支在某可见性类别下的 tip
// @Summary 查询 tip
// @Tags Subtitles
// @Produce json
// @Param vid path string true "视频 ID"
// @Param lang path string true "语言代码"
// @Param class query string false "public|extant|full" default(public)
// @Success 200 {object} dto.Response[dto.TipResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/videos/{vid}/languages/{lang}/tip [get]
func (h *SubtitleHandler) GetTip(c *gin.Context) {
	ctx := c.Request.Context()
	q, err := dto.BindVersionQuery(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	tip, err := sess.GetTip(ctx, lang, q.Class)
	if err != nil {
		respondError(c, "failed to get subtitle tip", err)
		return
	}
	title, err := sess.DisplayTitle(ctx, tip)
	if err != nil {
		// 标题回退失败不影响 tip 本身
		logger.Warn(ctx, "failed to resolve display title", "error", err.Error())
	}

	dto.Success(c, &dto.TipResponse{
		Class:        q.Class.String(),
		DisplayTitle: title,
		Version:      dto.ToVersionResponse(tip, true),
	})
}

// ListVersions 按版本号排序列出类别下的版本
// @Summary 列出版本
// @Tags Subtitles
// @Produce json
// @Param vid path string true "视频 ID"
// @Param lang path string true "语言代码"
// @Param class query string false "public|extant|full" default(public)
// @Param order query string false "asc|desc" default(desc)
// @Success 200 {object} dto.Response[[]dto.VersionResponse]
// @Router /v1/videos/{vid}/languages/{lang}/versions [get]
func (h *SubtitleHandler) ListVersions(c *gin.Context) {
	q, err := dto.BindVersionQuery(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	versions, err := sess.GetVersions(c.Request.Context(), lang, q.Class, q.Order)
	if err != nil {
		respondError(c, "failed to list subtitle versions", err)
		return
	}
	dto.Success(c, dto.ToVersionListResponse(versions))
}

// GetVersion 按版本号查询，受 class 过滤
// @Summary 查询版本
// @Tags Subtitles
// @Produce json
// @Param vid path string true "视频 ID"
// @Param lang path string true "语言代码"
// @Param num path int true "版本号"
// @Param class query string false "public|extant|full" default(public)
// @Success 200 {object} dto.Response[dto.VersionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/videos/{vid}/languages/{lang}/versions/{num} [get]
func (h *SubtitleHandler) GetVersion(c *gin.Context) {
	q, err := dto.BindVersionQuery(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	number, ok := dto.BindVersionNumber(c)
	if !ok {
		dto.BadRequest(c, "invalid version number")
		return
	}

	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	v, err := sess.GetVersion(c.Request.Context(), lang, number, q.Class)
	if err != nil {
		respondError(c, "failed to get subtitle version", err)
		return
	}
	if v == nil {
		dto.AppError(c, apperrors.ErrVersionNotFound.WithDetail(fmt.Sprintf("%s v%d (%s)", lang.LanguageCode, number, q.Class)))
		return
	}
	dto.Success(c, dto.ToVersionResponse(v, true))
}

// resolveParents 将 (语言, 版本号) 引用解析为同一视频下的版本
func resolveParents(ctx context.Context, sess *subtitles.Session, videoID string, refs []dto.ParentRef) ([]*entity.SubtitleVersion, error) {
	parents := make([]*entity.SubtitleVersion, 0, len(refs))
	for _, ref := range refs {
		lang, err := sess.GetLanguage(ctx, videoID, ref.LanguageCode)
		if err != nil {
			return nil, err
		}
		if lang == nil {
			return nil, apperrors.ErrLanguageNotFound.WithDetail(fmt.Sprintf("parent language %s/%s", videoID, ref.LanguageCode))
		}
		v, err := sess.GetVersion(ctx, lang, ref.VersionNumber, entity.ClassFull)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, apperrors.ErrVersionNotFound.WithDetail(fmt.Sprintf("parent version %s v%d", ref.LanguageCode, ref.VersionNumber))
		}
		parents = append(parents, v)
	}
	return parents, nil
}

// AddVersion 新增版本；分支不存在时自动创建
// @Summary 新增版本
// @Tags Subtitles
// @Accept json
// @Produce json
// @Param vid path string true "视频 ID"
// @Param lang path string true "语言代码"
// @Param body body dto.AddVersionRequest true "版本内容"
// @Success 201 {object} dto.Response[dto.VersionResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/videos/{vid}/languages/{lang}/versions [post]
func (h *SubtitleHandler) AddVersion(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.AddVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	sess := h.svc.NewSession()
	videoID := dto.BindVideoID(c)
	lang, err := sess.EnsureLanguage(ctx, videoID, dto.BindLanguageCode(c))
	if err != nil {
		respondError(c, "failed to ensure subtitle language", err)
		return
	}
	if !sess.CanWritelock(lang, userID) {
		dto.AppError(c, apperrors.ErrWritelockHeld.WithDetail("held by "+lang.WritelockOwner()))
		return
	}

	parents, err := resolveParents(ctx, sess, videoID, req.Parents)
	if err != nil {
		respondError(c, "failed to resolve parent versions", err)
		return
	}

	var created *entity.SubtitleVersion
	err = sess.Freeze(ctx, lang, func(ctx context.Context) error {
		v, err := sess.AddVersion(ctx, lang, subtitles.NewVersionInput{
			Subtitles:   req.ToItems(),
			Title:       req.Title,
			Description: req.Description,
			Metadata:    req.Metadata,
			Parents:     parents,
			Visibility:  entity.Visibility(req.Visibility),
			AuthorID:    userID,
			Origin:      entity.VersionOrigin(req.Origin),
			Note:        req.Note,
		})
		if err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		respondError(c, "failed to add subtitle version", err)
		return
	}
	dto.Created(c, dto.ToVersionResponse(created, false))
}

// Rollback 以较早版本的内容创建新版本
// @Summary 回滚
// @Tags Subtitles
// @Accept json
// @Produce json
// @Param vid path string true "视频 ID"
// @Param lang path string true "语言代码"
// @Param body body dto.RollbackRequest true "目标版本"
// @Success 201 {object} dto.Response[dto.VersionResponse]
// @Router /v1/videos/{vid}/languages/{lang}/rollback [post]
func (h *SubtitleHandler) Rollback(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.RollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	if !sess.CanWritelock(lang, userID) {
		dto.AppError(c, apperrors.ErrWritelockHeld.WithDetail("held by "+lang.WritelockOwner()))
		return
	}

	v, err := sess.Rollback(c.Request.Context(), lang, req.VersionNumber, userID)
	if err != nil {
		respondError(c, "failed to roll back subtitles", err)
		return
	}
	dto.Created(c, dto.ToVersionResponse(v, false))
}

// GetWritelock 查询编辑锁状态
// @Summary 编辑锁状态
// @Tags Subtitles
// @Produce json
// @Success 200 {object} dto.Response[dto.WritelockResponse]
// @Router /v1/videos/{vid}/languages/{lang}/writelock [get]
func (h *SubtitleHandler) GetWritelock(c *gin.Context) {
	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	dto.Success(c, dto.ToWritelockResponse(lang, sess.IsWritelocked(lang)))
}

// AcquireWritelock 获取或续期编辑锁；他人持有未过期的锁时返回 409
// @Summary 获取编辑锁
// @Tags Subtitles
// @Produce json
// @Success 200 {object} dto.Response[dto.WritelockResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/videos/{vid}/languages/{lang}/writelock [post]
func (h *SubtitleHandler) AcquireWritelock(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	sess := h.svc.NewSession()
	lang, err := sess.EnsureLanguage(ctx, dto.BindVideoID(c), dto.BindLanguageCode(c))
	if err != nil {
		respondError(c, "failed to ensure subtitle language", err)
		return
	}
	if !sess.CanWritelock(lang, userID) {
		dto.AppError(c, apperrors.ErrWritelockHeld.WithDetail("held by "+lang.WritelockOwner()))
		return
	}
	if err := sess.Writelock(ctx, lang, userID); err != nil {
		respondError(c, "failed to acquire writelock", err)
		return
	}
	dto.Success(c, dto.ToWritelockResponse(lang, true))
}

// ReleaseWritelock 释放编辑锁；只有持有者或锁已过期时可释放
// @Summary 释放编辑锁
// @Tags Subtitles
// @Success 204
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/videos/{vid}/languages/{lang}/writelock [delete]
func (h *SubtitleHandler) ReleaseWritelock(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	if !sess.CanWritelock(lang, userID) {
		dto.AppError(c, apperrors.ErrWritelockHeld.WithDetail("held by "+lang.WritelockOwner()))
		return
	}
	if err := sess.ReleaseWritelock(c.Request.Context(), lang); err != nil {
		respondError(c, "failed to release writelock", err)
		return
	}
	dto.NoContent(c)
}

// Publish 公开版本
// @Summary 公开版本
// @Tags Subtitles
// @Produce json
// @Success 200 {object} dto.Response[dto.VersionResponse]
// @Router /v1/videos/{vid}/languages/{lang}/versions/{num}/publish [post]
func (h *SubtitleHandler) Publish(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	v, ok := loadVersion(c, sess, lang)
	if !ok {
		return
	}
	if err := sess.Publish(c.Request.Context(), v); err != nil {
		respondError(c, "failed to publish subtitle version", err)
		return
	}
	dto.Success(c, dto.ToVersionResponse(v, false))
}

// Unpublish 隐藏版本；?delete=true 时标记为已删除
// @Summary 隐藏或删除版本
// @Tags Subtitles
// @Produce json
// @Param delete query bool false "标记为已删除"
// @Success 200 {object} dto.Response[dto.VersionResponse]
// @Router /v1/videos/{vid}/languages/{lang}/versions/{num}/unpublish [post]
func (h *SubtitleHandler) Unpublish(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	v, ok := loadVersion(c, sess, lang)
	if !ok {
		return
	}
	if err := sess.Unpublish(c.Request.Context(), lang, v, dto.BindDeleteFlag(c)); err != nil {
		respondError(c, "failed to unpublish subtitle version", err)
		return
	}
	dto.Success(c, dto.ToVersionResponse(v, false))
}

// SetCompletion 设置分支完成标记
// @Summary 设置完成标记
// @Tags Subtitles
// @Accept json
// @Produce json
// @Param body body dto.CompletionRequest true "完成标记"
// @Success 200 {object} dto.Response[dto.LanguageResponse]
// @Router /v1/videos/{vid}/languages/{lang}/completion [put]
func (h *SubtitleHandler) SetCompletion(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	var req dto.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	var err error
	if req.Complete {
		err = sess.MarkComplete(c.Request.Context(), lang)
	} else {
		err = sess.MarkIncomplete(c.Request.Context(), lang)
	}
	if err != nil {
		respondError(c, "failed to update completion", err)
		return
	}
	dto.Success(c, dto.ToLanguageResponse(lang, nil, nil))
}

// ChangeLanguageCode 修改分支语言代码
// @Summary 修改语言代码
// @Tags Subtitles
// @Accept json
// @Produce json
// @Param body body dto.ChangeLanguageRequest true "新语言代码"
// @Success 200 {object} dto.Response[dto.LanguageResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/videos/{vid}/languages/{lang} [patch]
func (h *SubtitleHandler) ChangeLanguageCode(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	var req dto.ChangeLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	if err := sess.ChangeLanguageCode(c.Request.Context(), lang, req.LanguageCode); err != nil {
		respondError(c, "failed to change language code", err)
		return
	}
	dto.Success(c, dto.ToLanguageResponse(lang, nil, nil))
}

// Nuke 删除分支全部版本
// @Summary 删除分支全部版本
// @Tags Subtitles
// @Success 204
// @Router /v1/videos/{vid}/languages/{lang} [delete]
func (h *SubtitleHandler) Nuke(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	sess := h.svc.NewSession()
	lang, ok := loadLanguage(c, sess)
	if !ok {
		return
	}
	if err := sess.Nuke(c.Request.Context(), lang); err != nil {
		respondError(c, "failed to delete subtitle language", err)
		return
	}
	dto.NoContent(c)
}

package firestore_service

import (
	"context"
	"fleet-push-service/models"
	"fleet-push-service/service/push_service"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreService 基于 Firestore 的令牌记录存储，每个身份一个文档
//
// Adding and removing entries use Firestore's ArrayUnion and ArrayRemove
// transforms, so concurrent writers to the same document never drop each
// other's entries. Removal matches stored values exactly, which is why entries
// carry the raw value they were read as.
type FirestoreService struct {
	client     *firestore.Client
	collection string
	log        *zap.Logger
}

var _ push_service.TokenDocumentStore = (*FirestoreService)(nil)

// NewFirestoreService 通过 Firebase 应用创建 Firestore 存储
func NewFirestoreService(ctx context.Context, app *firebase.App, collection string, log *zap.Logger) (*FirestoreService, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get firestore client: %w", err)
	}
	return NewFirestoreServiceWithClient(client, collection, log), nil
}

// NewFirestoreServiceWithClient 使用已有客户端创建 Firestore 存储
func NewFirestoreServiceWithClient(client *firestore.Client, collection string, log *zap.Logger) *FirestoreService {
	if collection == "" {
		collection = models.CollectionUserTokens
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FirestoreService{
		client:     client,
		collection: collection,
		log:        log.Named("firestore"),
	}
}

func (fs *FirestoreService) doc(identity string) *firestore.DocumentRef {
	return fs.client.Collection(fs.collection).Doc(identity)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// Get 获取身份对应的文档
func (fs *FirestoreService) Get(ctx context.Context, identity string) (*models.UserTokenRecord, error) {
	snap, err := fs.doc(identity).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, models.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	record, err := models.DecodeRecord(identity, snap.Data())
	if err != nil {
		return nil, err
	}
	if record.Legacy {
		fs.log.Debug("legacy token document", zap.String("collection", fs.collection), zap.Int("tokens", len(record.Tokens)))
	}
	return record, nil
}

// Set 覆盖令牌数组字段，文档的其他字段保持不变
func (fs *FirestoreService) Set(ctx context.Context, record *models.UserTokenRecord) error {
	_, err := fs.doc(record.Identity).Set(ctx, models.RecordData(record), firestore.Merge([]string{models.FieldTokens}))
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

// AddEntries 使用 ArrayUnion 并入条目，文档不存在时创建
func (fs *FirestoreService) AddEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		values = append(values, models.EntryData(entry))
	}
	_, err := fs.doc(identity).Set(ctx, map[string]interface{}{
		models.FieldTokens: firestore.ArrayUnion(values...),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("array union: %w", err)
	}
	return nil
}

// RemoveEntries 使用 ArrayRemove 移除与存储值完全相同的条目
func (fs *FirestoreService) RemoveEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		if entry.Raw != nil {
			values = append(values, entry.Raw)
		} else {
			values = append(values, models.EntryData(entry))
		}
	}
	_, err := fs.doc(identity).Update(ctx, []firestore.Update{
		{Path: models.FieldTokens, Value: firestore.ArrayRemove(values...)},
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("array remove: %w", err)
	}
	return nil
}

// DeleteIfEmpty 在事务中检查并删除空文档
func (fs *FirestoreService) DeleteIfEmpty(ctx context.Context, identity string) (bool, error) {
	ref := fs.doc(identity)
	deleted := false
	err := fs.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deleted = false
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if items, ok := snap.Data()[models.FieldTokens].([]interface{}); ok && len(items) > 0 {
			return nil
		}
		deleted = true
		return tx.Delete(ref)
	})
	if err != nil {
		return false, fmt.Errorf("delete empty document: %w", err)
	}
	return deleted, nil
}

// Delete 删除文档
func (fs *FirestoreService) Delete(ctx context.Context, identity string) error {
	if _, err := fs.doc(identity).Delete(ctx); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Close 关闭客户端
func (fs *FirestoreService) Close() error {
	return fs.client.Close()
}

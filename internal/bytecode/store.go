package bytecode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultStorePath 默认数据库路径
	DefaultStorePath = "./data/bytecode.db"

	// BytecodeBucket 存储桶名称
	BytecodeBucket = "bytecode"
)

// storedEntry 持久化条目格式
type storedEntry struct {
	Code       []byte    `json:"code"`
	InsertedAt time.Time `json:"inserted_at"`
}

// BoltStore 基于BoltDB的字节码持久化存储，作为内存缓存的第二层，
// 进程重启后仍在TTL内的条目可以继续使用
type BoltStore struct {
	db     *bolt.DB
	logger *logrus.Logger
	dbPath string
}

// NewBoltStore 打开持久化存储
func NewBoltStore(dbPath string, logger *logrus.Logger) (*BoltStore, error) {
	if dbPath == "" {
		dbPath = DefaultStorePath
	}

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开字节码数据库失败: %w", err)
	}

	// 初始化存储桶
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BytecodeBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化存储桶失败: %w", err)
	}

	logger.Infof("字节码持久化存储已打开: %s", dbPath)

	return &BoltStore{
		db:     db,
		logger: logger,
		dbPath: dbPath,
	}, nil
}

// Load 读取地址的字节码和插入时间
func (s *BoltStore) Load(addr string) (code []byte, insertedAt time.Time, found bool) {
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BytecodeBucket))
		data := bucket.Get([]byte(addr))
		if data == nil {
			return nil
		}

		var stored storedEntry
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}

		code = stored.Code
		insertedAt = stored.InsertedAt
		found = true
		return nil
	})
	if err != nil {
		s.logger.Warnf("读取持久化字节码失败: %v", err)
		return nil, time.Time{}, false
	}

	return code, insertedAt, found
}

// Save 写入地址的字节码
func (s *BoltStore) Save(addr string, code []byte, insertedAt time.Time) error {
	data, err := json.Marshal(&storedEntry{
		Code:       code,
		InsertedAt: insertedAt,
	})
	if err != nil {
		return fmt.Errorf("序列化字节码条目失败: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BytecodeBucket))
		return bucket.Put([]byte(addr), data)
	})
}

// Delete 删除地址的持久化条目
func (s *BoltStore) Delete(addr string) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BytecodeBucket))
		return bucket.Delete([]byte(addr))
	})
	if err != nil {
		s.logger.Warnf("删除持久化字节码失败: %v", err)
	}
}

// Close 关闭数据库
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

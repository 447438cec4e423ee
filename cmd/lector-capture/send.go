// send.go — подкоманда полного конвейера: захват → PDF → доставка.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jhonny-Kenneth/lector-id/internal/acquire"
	"github.com/Jhonny-Kenneth/lector-id/internal/acquire/gstcap"
	"github.com/Jhonny-Kenneth/lector-id/internal/compose"
	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// sendPayload — тело запроса к endpoint'у доставки сервиса.
type sendPayload struct {
	PDFBase64  string `json:"pdfBase64"`
	Filename   string `json:"filename"`
	ClientName string `json:"clientName"`
	SenderKey  string `json:"senderKey,omitempty"`
	To         string `json:"to,omitempty"`
}

// sendResult — тело ответа сервиса доставки.
type sendResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	ErrorID string `json:"errorId"`
}

func newSendCommand() *cobra.Command {
	var (
		frontPath string
		backPath  string
		deviceID  string
		client    string
		senderKey string
		to        string
		outPath   string
		serverURL string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Захватить обе стороны документа, собрать PDF и отправить",
		Long: `Источники сторон документа — файлы (--front/--back) или камера.
Без --device открывается первое доступное устройство захвата.
При захвате с камеры команда ждёт Enter перед каждой стороной.
С флагом --out PDF сохраняется локально вместо отправки сервису.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newCLILogger(verbose)

			front, back, err := acquireSides(cmd, logger, frontPath, backPath, deviceID)
			if err != nil {
				return err
			}

			doc, err := compose.Compose(*front, *back, client)
			if err != nil {
				return fmt.Errorf("сборка PDF: %w", err)
			}
			logger.Info("PDF собран",
				slog.String("filename", doc.Filename),
				slog.Int("size_bytes", len(doc.Bytes)),
			)

			if outPath != "" {
				if err := os.WriteFile(outPath, doc.Bytes, 0o644); err != nil {
					return fmt.Errorf("запись PDF: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "PDF сохранён: %s\n", outPath)
				return nil
			}

			return deliver(cmd.Context(), cmd, doc, client, senderKey, to, serverURL)
		},
	}

	cmd.Flags().StringVar(&frontPath, "front", "", "Файл лицевой стороны (JPEG/PNG)")
	cmd.Flags().StringVar(&backPath, "back", "", "Файл оборотной стороны (JPEG/PNG)")
	cmd.Flags().StringVar(&deviceID, "device", "", "Устройство захвата (по умолчанию — первое доступное)")
	cmd.Flags().StringVar(&client, "client", "", "Имя клиента для имени файла и темы письма")
	cmd.Flags().StringVar(&senderKey, "sender-key", "", "Ключ профиля отправителя")
	cmd.Flags().StringVar(&to, "to", "", "Адрес получателя (иначе — получатель сервиса по умолчанию)")
	cmd.Flags().StringVar(&outPath, "out", "", "Сохранить PDF в файл вместо отправки")
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Базовый URL сервиса доставки")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Подробное логирование")

	return cmd
}

// acquireSides получает обе стороны документа: из файлов или с камеры.
// Без --device открывается первое доступное устройство.
func acquireSides(cmd *cobra.Command, logger *slog.Logger, frontPath, backPath, deviceID string) (*model.CapturedImage, *model.CapturedImage, error) {
	if frontPath != "" || backPath != "" {
		if frontPath == "" || backPath == "" {
			return nil, nil, fmt.Errorf("укажите оба файла: --front и --back")
		}
		manager := acquire.NewManager(acquire.NewFileCapability(frontPath, backPath), logger)
		front, err := captureFile(manager, frontPath)
		if err != nil {
			return nil, nil, fmt.Errorf("лицевая сторона: %w", err)
		}
		back, err := captureFile(manager, backPath)
		if err != nil {
			return nil, nil, fmt.Errorf("оборотная сторона: %w", err)
		}
		return front, back, nil
	}

	manager := acquire.NewManager(gstcap.New(logger), logger)
	if err := manager.Start(cmd.Context(), deviceID); err != nil {
		return nil, nil, fmt.Errorf("запуск захвата: %w", err)
	}
	defer func() {
		if err := manager.Stop(); err != nil {
			logger.Warn("Остановка захвата", slog.String("error", err.Error()))
		}
	}()

	front, err := captureSide(cmd, manager, "лицевую")
	if err != nil {
		return nil, nil, err
	}
	back, err := captureSide(cmd, manager, "оборотную")
	if err != nil {
		return nil, nil, err
	}
	return front, back, nil
}

// captureFile загружает одну сторону из файла через менеджер.
func captureFile(manager *acquire.Manager, path string) (*model.CapturedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return manager.CaptureFromFile(f)
}

// captureSide ждёт подтверждения оператора и снимает кадр.
func captureSide(cmd *cobra.Command, manager *acquire.Manager, side string) (*model.CapturedImage, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "Поместите %s сторону документа и нажмите Enter...", side)
	reader := bufio.NewReader(cmd.InOrStdin())
	if _, err := reader.ReadString('\n'); err != nil {
		return nil, fmt.Errorf("ожидание подтверждения: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	return manager.Capture(ctx)
}

// deliver отправляет собранный документ сервису доставки.
func deliver(ctx context.Context, cmd *cobra.Command, doc *model.ComposedDocument, client, senderKey, to, serverURL string) error {
	payload, err := json.Marshal(sendPayload{
		PDFBase64:  base64.StdEncoding.EncodeToString(doc.Bytes),
		Filename:   doc.Filename,
		ClientName: client,
		SenderKey:  senderKey,
		To:         to,
	})
	if err != nil {
		return fmt.Errorf("сериализация запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		serverURL+"/api/v1/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("формирование запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{Timeout: 60 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("вызов сервиса доставки: %w", err)
	}
	defer resp.Body.Close()

	var result sendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("разбор ответа сервиса (%d): %w", resp.StatusCode, err)
	}

	if !result.OK {
		return fmt.Errorf("доставка отклонена (%d, %s): %s",
			resp.StatusCode, result.ErrorID, result.Message)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (errorId: %s)\n", result.Message, result.ErrorID)
	return nil
}

// newCLILogger настраивает текстовый логгер CLI на stderr.
func newCLILogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package transferhttp реализует HTTP-интерфейс сервиса передачи файлов по частям
// поверх transfersvc. Основные эндпоинты:
//   - POST /upload: принимает часть: filename, X-Chunk-Number, checksum (или md5), тело.
//   - GET /upload/{filename}: список принятых индексов для докачки.
//   - DELETE /upload/{filename}: отменяет сессию и удаляет её части.
//   - POST /complete: собирает части в итоговый файл и проверяет общую контрольную сумму.
//   - HEAD /download: размер файла в Content-Length для планирования диапазонов.
//   - GET /download: один диапазон: filename, chunk_number, chunk_size; 206 и Content-Range.
//   - GET /health, POST /admin/gc: служебные эндпоинты.
//   - GET /download_speed, POST /upload_speed: пробы пропускной способности.
package transferhttp
